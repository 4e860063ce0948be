package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/majstori/marketplace-chat/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicateConversation is returned when the (customer, provider) pair already has a conversation
var ErrDuplicateConversation = errors.New("conversation already exists for this pair")

// ChatRepository is the persistence boundary of the chat core
type ChatRepository interface {
	Transaction(ctx context.Context, fn func(repo ChatRepository) error) error

	// Authorization oracle
	IsUserInConversation(ctx context.Context, conversationID, userID string) (bool, error)

	// Conversations
	FindConversationByID(ctx context.Context, id string) (*domain.Conversation, error)
	FindConversationBetween(ctx context.Context, customerID, providerID string) (*domain.Conversation, error)
	CreateConversation(ctx context.Context, conv *domain.Conversation, participants []domain.Participant) error
	ListConversations(ctx context.Context, userID string, role domain.Role, q domain.ConversationQuery) ([]*domain.Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error

	// Messages
	CreateMessage(ctx context.Context, msg *domain.Message) error
	FindMessageByID(ctx context.Context, id string) (*domain.Message, error)
	ListMessages(ctx context.Context, conversationID string, q domain.MessageQuery) ([]*domain.Message, error)
	LastMessage(ctx context.Context, conversationID string) (*domain.Message, error)
	UpdateMessageBody(ctx context.Context, id, body string, at time.Time) error
	SoftDeleteMessage(ctx context.Context, id string, at time.Time) error

	// Read state
	CountUnread(ctx context.Context, conversationID string, viewer domain.Role) (int64, error)
	MarkRead(ctx context.Context, conversationID string, viewer domain.Role, userID string) error

	// Receipts
	FindReceipt(ctx context.Context, messageID, recipientUserID string) (*domain.Receipt, error)
	UpsertReceipt(ctx context.Context, receipt *domain.Receipt) error
	ListReceipts(ctx context.Context, messageID string) ([]*domain.Receipt, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new ChatRepository
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// Transaction runs fn against a repository bound to a single database transaction
func (r *chatRepository) Transaction(ctx context.Context, fn func(repo ChatRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&chatRepository{db: tx})
	})
}

func (r *chatRepository) IsUserInConversation(ctx context.Context, conversationID, userID string) (bool, error) {
	if conversationID == "" || userID == "" {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *chatRepository) FindConversationByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *chatRepository) FindConversationBetween(ctx context.Context, customerID, providerID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND provider_id = ?", customerID, providerID).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// CreateConversation inserts the conversation and its membership rows atomically.
// A unique-key collision on the (customer, provider) pair yields ErrDuplicateConversation.
func (r *chatRepository) CreateConversation(ctx context.Context, conv *domain.Conversation, participants []domain.Participant) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		for i := range participants {
			participants[i].ConversationID = conv.ID
		}
		if len(participants) == 0 {
			return nil
		}
		return tx.Create(&participants).Error
	})
	if isDuplicateKey(err) {
		return ErrDuplicateConversation
	}
	return err
}

// ListConversations returns the user's conversations, newest activity first.
// Cursor is the id of the last conversation of the previous page.
func (r *chatRepository) ListConversations(ctx context.Context, userID string, role domain.Role, q domain.ConversationQuery) ([]*domain.Conversation, error) {
	db := r.db.WithContext(ctx)
	query := db.Model(&domain.Conversation{})
	if role == domain.RoleProvider {
		query = query.Where("provider_id = ?", userID)
	} else {
		query = query.Where("customer_id = ?", userID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Cursor != "" {
		var anchor domain.Conversation
		if err := db.Where("id = ?", q.Cursor).First(&anchor).Error; err != nil {
			return nil, err
		}
		query = query.Where("(last_message_at < ? OR (last_message_at = ? AND id < ?))",
			anchor.LastMessageAt, anchor.LastMessageAt, anchor.ID)
	}

	var convs []*domain.Conversation
	err := query.Order("last_message_at DESC").Order("id DESC").
		Limit(q.Limit).
		Find(&convs).Error
	return convs, err
}

// TouchConversation advances last_message_at; concurrent writers resolve last-write-wins
func (r *chatRepository) TouchConversation(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("id = ?", id).
		Update("last_message_at", at).Error
}

// CreateMessage inserts the message together with its attachments
func (r *chatRepository) CreateMessage(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *chatRepository) FindMessageByID(ctx context.Context, id string) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.WithContext(ctx).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	msg.NormalizeAttachments()
	return &msg, nil
}

// ListMessages pages backwards (newest first) from the Before anchor
func (r *chatRepository) ListMessages(ctx context.Context, conversationID string, q domain.MessageQuery) ([]*domain.Message, error) {
	db := r.db.WithContext(ctx)
	query := db.Where("conversation_id = ?", conversationID)
	if q.Before != "" {
		var anchor domain.Message
		if err := db.Where("id = ? AND conversation_id = ?", q.Before, conversationID).First(&anchor).Error; err != nil {
			return nil, err
		}
		query = query.Where("(sent_at < ? OR (sent_at = ? AND id < ?))", anchor.SentAt, anchor.SentAt, anchor.ID)
	}

	var messages []*domain.Message
	err := query.
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Order("sent_at DESC").Order("id DESC").
		Limit(q.Limit).
		Find(&messages).Error
	for _, m := range messages {
		m.NormalizeAttachments()
	}
	return messages, err
}

func (r *chatRepository) LastMessage(ctx context.Context, conversationID string) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("sent_at DESC").Order("id DESC").
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *chatRepository) UpdateMessageBody(ctx context.Context, id, body string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{"body": body, "edited_at": at})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *chatRepository) SoftDeleteMessage(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountUnread counts live messages written by the other side that the viewer has not read
func (r *chatRepository) CountUnread(ctx context.Context, conversationID string, viewer domain.Role) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_type <> ? AND is_read = ? AND deleted_at IS NULL",
			conversationID, viewer, false).
		Count(&count).Error
	return count, err
}

// MarkRead flips every unread message from the other side and moves the viewer's read pointer
func (r *chatRepository) MarkRead(ctx context.Context, conversationID string, viewer domain.Role, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&domain.Message{}).
			Where("conversation_id = ? AND sender_type <> ? AND is_read = ?", conversationID, viewer, false).
			Update("is_read", true).Error
		if err != nil {
			return err
		}

		var last domain.Message
		err = tx.Where("conversation_id = ?", conversationID).
			Order("sent_at DESC").Order("id DESC").
			First(&last).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Model(&domain.Participant{}).
			Where("conversation_id = ? AND user_id = ?", conversationID, userID).
			Update("last_read_message_id", last.ID).Error
	})
}

func (r *chatRepository) FindReceipt(ctx context.Context, messageID, recipientUserID string) (*domain.Receipt, error) {
	var receipt domain.Receipt
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND recipient_user_id = ?", messageID, recipientUserID).
		First(&receipt).Error
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// UpsertReceipt writes one row per (message, recipient). A delivered acknowledgment
// never overwrites read; receipt is reloaded with whatever state is stored.
func (r *chatRepository) UpsertReceipt(ctx context.Context, receipt *domain.Receipt) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "recipient_user_id"}},
			DoNothing: true,
		}).Create(receipt).Error
		if err != nil {
			return err
		}

		update := tx.Model(&domain.Receipt{}).
			Where("message_id = ? AND recipient_user_id = ?", receipt.MessageID, receipt.RecipientUserID)
		if receipt.Status != domain.ReceiptRead {
			update = update.Where("status <> ?", domain.ReceiptRead)
		}
		err = update.Updates(map[string]interface{}{"status": receipt.Status, "at": receipt.At}).Error
		if err != nil {
			return err
		}

		conversationID := receipt.ConversationID
		err = tx.Where("message_id = ? AND recipient_user_id = ?", receipt.MessageID, receipt.RecipientUserID).
			First(receipt).Error
		receipt.ConversationID = conversationID
		return err
	})
}

func (r *chatRepository) ListReceipts(ctx context.Context, messageID string) ([]*domain.Receipt, error) {
	var receipts []*domain.Receipt
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("at ASC").
		Find(&receipts).Error
	return receipts, err
}

// isDuplicateKey recognizes unique violations with or without gorm's TranslateError
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}
