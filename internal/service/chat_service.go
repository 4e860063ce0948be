package service

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/majstori/marketplace-chat/internal/common"
	"github.com/majstori/marketplace-chat/internal/domain"
	"github.com/majstori/marketplace-chat/internal/repository"
	"github.com/majstori/marketplace-chat/pkg/logger"
	"gorm.io/gorm"
)

// ChatService business logic for conversations and messages.
// Both the REST handlers and the socket gateway go through it.
type ChatService interface {
	CreateConversation(ctx context.Context, req *domain.CreateConversationRequest, creator *domain.Identity) (*domain.CreateConversationResult, error)
	GetConversation(ctx context.Context, id string, viewer domain.Identity) (*domain.ConversationView, error)
	ListConversations(ctx context.Context, viewer domain.Identity, q domain.ConversationQuery) ([]*domain.ConversationView, *common.Meta, error)
	ArchiveConversation(ctx context.Context, id string, viewer domain.Identity) error

	ListMessages(ctx context.Context, conversationID string, viewer domain.Identity, q domain.MessageQuery) ([]*domain.Message, *common.Meta, error)
	SendMessage(ctx context.Context, req *domain.SendMessageRequest, sender domain.Identity) (*domain.Message, error)
	EditMessage(ctx context.Context, id, body string, editor domain.Identity) (*domain.Message, error)
	DeleteMessage(ctx context.Context, id string, userID string) (*domain.Message, error)

	MarkAsRead(ctx context.Context, conversationID string, viewer domain.Identity) error
	GetUnreadCount(ctx context.Context, conversationID string, viewer domain.Identity) (int64, error)

	UpdateReceipt(ctx context.Context, messageID string, recipient domain.Identity, status domain.ReceiptStatus) (*domain.Receipt, error)
	GetReceipts(ctx context.Context, messageID, userID string) ([]*domain.Receipt, error)

	// Fan-out support
	CheckParticipant(ctx context.Context, conversationID, userID string) error
	ParticipantIDs(ctx context.Context, conversationID string) ([]string, error)
	ParticipantSummaries(ctx context.Context, conversationID, actorID string) (map[string]*domain.ConversationSummary, error)
}

type chatService struct {
	repo      repository.ChatRepository
	providers repository.ProviderDirectory
	now       func() time.Time
}

// NewChatService creates a new ChatService. providers may be nil.
func NewChatService(repo repository.ChatRepository, providers repository.ProviderDirectory) ChatService {
	return &chatService{
		repo:      repo,
		providers: providers,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// CreateConversation returns the existing conversation for the (customer, provider) pair
// or creates it, optionally posting an initial message.
func (s *chatService) CreateConversation(ctx context.Context, req *domain.CreateConversationRequest, creator *domain.Identity) (*domain.CreateConversationResult, error) {
	providerID := strings.TrimSpace(req.ProviderID)
	customerID := strings.TrimSpace(req.CustomerID)
	customerName := strings.TrimSpace(req.CustomerName)
	if creator != nil {
		switch creator.Role {
		case domain.RoleCustomer:
			customerID = creator.UserID
			if customerName == "" {
				customerName = creator.Name
			}
		case domain.RoleProvider:
			providerID = creator.UserID
		}
	}
	if providerID == "" {
		return nil, common.Validation("provider_id is required")
	}
	if customerID != "" && customerID == providerID {
		return nil, common.Validation("cannot start a conversation with yourself")
	}

	if customerID != "" {
		existing, err := s.repo.FindConversationBetween(ctx, customerID, providerID)
		if err == nil {
			return &domain.CreateConversationResult{Conversation: existing}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("find conversation: %w", err)
		}
	}

	now := s.now()
	conv := &domain.Conversation{
		ProviderID:    providerID,
		CustomerName:  customerName,
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		Status:        domain.ConversationActive,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	participants := []domain.Participant{{UserID: providerID, Role: domain.RoleProvider, JoinedAt: now}}
	if customerID != "" {
		conv.CustomerID = &customerID
		participants = append(participants, domain.Participant{UserID: customerID, Role: domain.RoleCustomer, JoinedAt: now})
	}

	// the initial message is validated before anything is written
	var initial *domain.Message
	if req.InitialMessage != "" {
		msg, err := s.buildMessage(conv, &domain.SendMessageRequest{
			Type: domain.MessageText,
			Body: req.InitialMessage,
		}, senderFor(conv, creator))
		if err != nil {
			return nil, err
		}
		initial = msg
	}

	err := s.repo.Transaction(ctx, func(tx repository.ChatRepository) error {
		if err := tx.CreateConversation(ctx, conv, participants); err != nil {
			return err
		}
		if initial == nil {
			return nil
		}
		initial.ConversationID = conv.ID
		return storeMessage(ctx, tx, initial)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateConversation) {
			// lost the race against a concurrent first-time creator
			existing, findErr := s.repo.FindConversationBetween(ctx, customerID, providerID)
			if findErr != nil {
				return nil, fmt.Errorf("refetch conversation: %w", findErr)
			}
			return &domain.CreateConversationResult{Conversation: existing}, nil
		}
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	result := &domain.CreateConversationResult{Conversation: conv, Created: true}
	if initial != nil {
		conv.LastMessageAt = initial.SentAt
		result.InitialMessage = initial
	}
	return result, nil
}

// senderFor picks the author of an initial message. Without a creator the inquiry is attributed to the customer side.
func senderFor(conv *domain.Conversation, creator *domain.Identity) messageAuthor {
	if creator != nil {
		id := creator.UserID
		return messageAuthor{ID: &id, Role: roleIn(conv, creator.UserID), Name: creator.Name}
	}
	return messageAuthor{ID: conv.CustomerID, Role: domain.RoleCustomer, Name: conv.CustomerName}
}

func (s *chatService) GetConversation(ctx context.Context, id string, viewer domain.Identity) (*domain.ConversationView, error) {
	conv, err := s.authorize(ctx, id, viewer.UserID)
	if err != nil {
		return nil, err
	}
	views, err := s.enrich(ctx, []*domain.Conversation{conv}, viewer.UserID)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (s *chatService) ListConversations(ctx context.Context, viewer domain.Identity, q domain.ConversationQuery) ([]*domain.ConversationView, *common.Meta, error) {
	if !viewer.Role.Valid() {
		return nil, nil, common.Validation("unknown role")
	}
	if q.Limit < 1 || q.Limit > domain.MaxConvPageSize {
		q.Limit = domain.DefaultConvPageSize
	}
	limit := q.Limit
	q.Limit = limit + 1

	convs, err := s.repo.ListConversations(ctx, viewer.UserID, viewer.Role, q)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, common.Validation("unknown cursor")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("list conversations: %w", err)
	}

	meta := &common.Meta{Limit: limit}
	if len(convs) > limit {
		convs = convs[:limit]
		meta.HasMore = true
		meta.NextCursor = convs[len(convs)-1].ID
	}

	views, err := s.enrich(ctx, convs, viewer.UserID)
	if err != nil {
		return nil, nil, err
	}
	return views, meta, nil
}

// enrich attaches viewer-specific unread counts, previews and provider names
func (s *chatService) enrich(ctx context.Context, convs []*domain.Conversation, viewerID string) ([]*domain.ConversationView, error) {
	names := map[string]string{}
	if s.providers != nil && len(convs) > 0 {
		ids := make([]string, 0, len(convs))
		for _, c := range convs {
			ids = append(ids, c.ProviderID)
		}
		resolved, err := s.providers.DisplayNames(ctx, ids)
		if err != nil {
			// enrichment is cosmetic
			logger.GetLogger().Warn().Err(err).Msg("provider name lookup failed")
		}
		if resolved != nil {
			names = resolved
		}
	}

	views := make([]*domain.ConversationView, 0, len(convs))
	for _, c := range convs {
		unread, err := s.repo.CountUnread(ctx, c.ID, roleIn(c, viewerID))
		if err != nil {
			return nil, fmt.Errorf("count unread: %w", err)
		}
		view := &domain.ConversationView{
			Conversation: *c,
			ProviderName: names[c.ProviderID],
			UnreadCount:  unread,
		}
		last, err := s.repo.LastMessage(ctx, c.ID)
		switch {
		case err == nil:
			view.LastMessage = last.Preview()
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("last message: %w", err)
		}
		views = append(views, view)
	}
	return views, nil
}

// ArchiveConversation is a reserved transition: authorized, logged, not implemented
func (s *chatService) ArchiveConversation(ctx context.Context, id string, viewer domain.Identity) error {
	if _, err := s.authorize(ctx, id, viewer.UserID); err != nil {
		return err
	}
	logger.GetLogger().Info().Str("conversation_id", id).Str("user_id", viewer.UserID).Msg("archive requested")
	return common.NotImplemented("archiving conversations is not supported yet")
}

func (s *chatService) ListMessages(ctx context.Context, conversationID string, viewer domain.Identity, q domain.MessageQuery) ([]*domain.Message, *common.Meta, error) {
	if _, err := s.authorize(ctx, conversationID, viewer.UserID); err != nil {
		return nil, nil, err
	}
	if q.Limit < 1 {
		q.Limit = domain.DefaultMessagePageSize
	}
	if q.Limit > domain.MaxMessagePageSize {
		q.Limit = domain.MaxMessagePageSize
	}
	limit := q.Limit
	q.Limit = limit + 1

	messages, err := s.repo.ListMessages(ctx, conversationID, q)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, common.Validation("unknown message cursor")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("list messages: %w", err)
	}

	meta := &common.Meta{Limit: limit}
	if len(messages) > limit {
		messages = messages[:limit]
		meta.HasMore = true
		meta.NextCursor = messages[len(messages)-1].ID
	}
	for _, m := range messages {
		m.Tombstone()
	}
	return messages, meta, nil
}

// SendMessage is the single entry point for message creation
func (s *chatService) SendMessage(ctx context.Context, req *domain.SendMessageRequest, sender domain.Identity) (*domain.Message, error) {
	conv, err := s.authorize(ctx, req.ConversationID, sender.UserID)
	if err != nil {
		return nil, err
	}
	id := sender.UserID
	return s.persistMessage(ctx, conv, req, messageAuthor{ID: &id, Role: roleIn(conv, sender.UserID), Name: sender.Name})
}

type messageAuthor struct {
	ID   *string
	Role domain.Role
	Name string
}

// persistMessage validates and stores a message with its attachments and advances last_message_at
func (s *chatService) persistMessage(ctx context.Context, conv *domain.Conversation, req *domain.SendMessageRequest, author messageAuthor) (*domain.Message, error) {
	msg, err := s.buildMessage(conv, req, author)
	if err != nil {
		return nil, err
	}
	err = s.repo.Transaction(ctx, func(tx repository.ChatRepository) error {
		return storeMessage(ctx, tx, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return msg, nil
}

// buildMessage validates req and assembles the message row without touching the store
func (s *chatService) buildMessage(conv *domain.Conversation, req *domain.SendMessageRequest, author messageAuthor) (*domain.Message, error) {
	body, err := validateBody(req.Body)
	if err != nil {
		return nil, err
	}
	msgType := req.Type
	if msgType == "" {
		msgType = domain.MessageText
	}
	if !msgType.Valid() {
		return nil, common.Validation("unknown message type %q", msgType)
	}
	if len(req.Attachments) > domain.MaxMessageAttachments {
		return nil, common.Validation("at most %d attachments are allowed", domain.MaxMessageAttachments)
	}

	now := s.now()
	msg := &domain.Message{
		ConversationID: conv.ID,
		SenderID:       author.ID,
		SenderType:     author.Role,
		SenderName:     author.Name,
		Type:           msgType,
		Body:           body,
		SentAt:         now,
		Attachments:    make([]domain.Attachment, 0, len(req.Attachments)),
	}
	for _, raw := range req.Attachments {
		u := strings.TrimSpace(raw)
		if u == "" {
			return nil, common.Validation("attachment url cannot be empty")
		}
		msg.Attachments = append(msg.Attachments, domain.Attachment{
			URL:       u,
			MimeType:  InferMimeType(u),
			CreatedAt: now,
		})
	}
	return msg, nil
}

func storeMessage(ctx context.Context, tx repository.ChatRepository, msg *domain.Message) error {
	if err := tx.CreateMessage(ctx, msg); err != nil {
		return err
	}
	return tx.TouchConversation(ctx, msg.ConversationID, msg.SentAt)
}

func (s *chatService) EditMessage(ctx context.Context, id, body string, editor domain.Identity) (*domain.Message, error) {
	msg, err := s.authorizeMessage(ctx, id, editor.UserID)
	if err != nil {
		return nil, err
	}
	if !msg.IsSentBy(editor.UserID) {
		return nil, common.Unauthorized("only the sender can edit this message")
	}
	if msg.DeletedAt != nil {
		return nil, common.NotFound("message not found")
	}
	trimmed, err := validateBody(body)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.repo.UpdateMessageBody(ctx, id, trimmed, now); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("message not found")
		}
		return nil, fmt.Errorf("edit message: %w", err)
	}
	msg.Body = trimmed
	msg.EditedAt = &now
	return msg, nil
}

func (s *chatService) DeleteMessage(ctx context.Context, id string, userID string) (*domain.Message, error) {
	msg, err := s.authorizeMessage(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !msg.IsSentBy(userID) {
		return nil, common.Unauthorized("only the sender can delete this message")
	}
	if msg.DeletedAt != nil {
		return nil, common.NotFound("message not found")
	}

	now := s.now()
	if err := s.repo.SoftDeleteMessage(ctx, id, now); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("message not found")
		}
		return nil, fmt.Errorf("delete message: %w", err)
	}
	msg.DeletedAt = &now
	msg.Tombstone()
	return msg, nil
}

func (s *chatService) MarkAsRead(ctx context.Context, conversationID string, viewer domain.Identity) error {
	conv, err := s.authorize(ctx, conversationID, viewer.UserID)
	if err != nil {
		return err
	}
	if err := s.repo.MarkRead(ctx, conversationID, roleIn(conv, viewer.UserID), viewer.UserID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (s *chatService) GetUnreadCount(ctx context.Context, conversationID string, viewer domain.Identity) (int64, error) {
	conv, err := s.authorize(ctx, conversationID, viewer.UserID)
	if err != nil {
		return 0, err
	}
	count, err := s.repo.CountUnread(ctx, conversationID, roleIn(conv, viewer.UserID))
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// UpdateReceipt records a delivery/read acknowledgment; a receipt never moves from read back to delivered
func (s *chatService) UpdateReceipt(ctx context.Context, messageID string, recipient domain.Identity, status domain.ReceiptStatus) (*domain.Receipt, error) {
	if !status.Valid() {
		return nil, common.Validation("status must be delivered or read")
	}
	msg, err := s.authorizeMessage(ctx, messageID, recipient.UserID)
	if err != nil {
		return nil, err
	}
	if msg.IsSentBy(recipient.UserID) {
		return nil, common.Validation("cannot acknowledge your own message")
	}

	existing, err := s.repo.FindReceipt(ctx, messageID, recipient.UserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find receipt: %w", err)
	}
	if existing != nil && !status.Supersedes(existing.Status) {
		existing.ConversationID = msg.ConversationID
		return existing, nil
	}

	receipt := &domain.Receipt{
		MessageID:       messageID,
		RecipientUserID: recipient.UserID,
		Status:          status,
		At:              s.now(),
		ConversationID:  msg.ConversationID,
	}
	if err := s.repo.UpsertReceipt(ctx, receipt); err != nil {
		return nil, fmt.Errorf("upsert receipt: %w", err)
	}
	return receipt, nil
}

func (s *chatService) GetReceipts(ctx context.Context, messageID, userID string) ([]*domain.Receipt, error) {
	if _, err := s.authorizeMessage(ctx, messageID, userID); err != nil {
		return nil, err
	}
	receipts, err := s.repo.ListReceipts(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return receipts, nil
}

func (s *chatService) CheckParticipant(ctx context.Context, conversationID, userID string) error {
	_, err := s.authorize(ctx, conversationID, userID)
	return err
}

func (s *chatService) ParticipantIDs(ctx context.Context, conversationID string) ([]string, error) {
	conv, err := s.repo.FindConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("conversation not found")
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return conv.ParticipantIDs(), nil
}

// ParticipantSummaries builds the conversation:updated payload for each participant.
// The actor's unread count is reported as zero; everyone else gets a fresh count.
func (s *chatService) ParticipantSummaries(ctx context.Context, conversationID, actorID string) (map[string]*domain.ConversationSummary, error) {
	conv, err := s.repo.FindConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("conversation not found")
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}

	var preview *domain.MessagePreview
	last, err := s.repo.LastMessage(ctx, conversationID)
	switch {
	case err == nil:
		preview = last.Preview()
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("last message: %w", err)
	}

	summaries := make(map[string]*domain.ConversationSummary, 2)
	for _, userID := range conv.ParticipantIDs() {
		summary := &domain.ConversationSummary{
			ConversationID: conv.ID,
			LastMessageAt:  conv.LastMessageAt,
			LastMessage:    preview,
		}
		if userID != actorID {
			unread, err := s.repo.CountUnread(ctx, conv.ID, roleIn(conv, userID))
			if err != nil {
				return nil, fmt.Errorf("count unread: %w", err)
			}
			summary.UnreadCount = unread
		}
		summaries[userID] = summary
	}
	return summaries, nil
}

// authorize loads the conversation and checks the membership row
func (s *chatService) authorize(ctx context.Context, conversationID, userID string) (*domain.Conversation, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, common.Validation("conversation id is required")
	}
	conv, err := s.repo.FindConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("conversation not found")
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	ok, err := s.repo.IsUserInConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return nil, common.Unauthorized("you are not a participant of this conversation")
	}
	return conv, nil
}

// authorizeMessage loads the message and checks membership of its conversation
func (s *chatService) authorizeMessage(ctx context.Context, messageID, userID string) (*domain.Message, error) {
	msg, err := s.repo.FindMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("message not found")
		}
		return nil, fmt.Errorf("find message: %w", err)
	}
	ok, err := s.repo.IsUserInConversation(ctx, msg.ConversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return nil, common.Unauthorized("you are not a participant of this conversation")
	}
	return msg, nil
}

// roleIn derives which side userID plays in conv
func roleIn(conv *domain.Conversation, userID string) domain.Role {
	if conv.ProviderID == userID {
		return domain.RoleProvider
	}
	return domain.RoleCustomer
}

func validateBody(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	n := utf8.RuneCountInString(trimmed)
	if n == 0 {
		return "", common.Validation("message body cannot be empty")
	}
	if n > domain.MaxMessageBodyLength {
		return "", common.Validation("message body exceeds %d characters", domain.MaxMessageBodyLength)
	}
	return trimmed, nil
}

var knownMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".svg":  "image/svg+xml",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".txt":  "text/plain",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
}

// InferMimeType guesses the MIME type of an attachment from its URL extension
func InferMimeType(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return "application/octet-stream"
	}
	if t, ok := knownMimeTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if mediaType, _, err := mime.ParseMediaType(t); err == nil {
			return mediaType
		}
	}
	return "application/octet-stream"
}
