package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ConversationStatus lifecycle state of a conversation
type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
)

// MessageType enumerates what a message body carries
type MessageType string

const (
	MessageText           MessageType = "text"
	MessageImage          MessageType = "image"
	MessageFile           MessageType = "file"
	MessageSystem         MessageType = "system"
	MessageCaseTemplate   MessageType = "case_template"
	MessageServiceRequest MessageType = "service_request"
	MessageCaseCreated    MessageType = "case_created"
	MessageCaseFilled     MessageType = "case_filled"
	MessageSurvey         MessageType = "survey"
)

var messageTypes = map[MessageType]struct{}{
	MessageText: {}, MessageImage: {}, MessageFile: {}, MessageSystem: {},
	MessageCaseTemplate: {}, MessageServiceRequest: {}, MessageCaseCreated: {},
	MessageCaseFilled: {}, MessageSurvey: {},
}

// Valid reports whether t is a known message type
func (t MessageType) Valid() bool {
	_, ok := messageTypes[t]
	return ok
}

// ReceiptStatus per-recipient delivery state
type ReceiptStatus string

const (
	ReceiptDelivered ReceiptStatus = "delivered"
	ReceiptRead      ReceiptStatus = "read"
)

// Valid reports whether s is a known receipt status
func (s ReceiptStatus) Valid() bool {
	return s == ReceiptDelivered || s == ReceiptRead
}

// rank orders statuses so an upsert never moves backwards
func (s ReceiptStatus) rank() int {
	if s == ReceiptRead {
		return 2
	}
	return 1
}

// Supersedes reports whether s is at least as advanced as prev
func (s ReceiptStatus) Supersedes(prev ReceiptStatus) bool {
	return s.rank() >= prev.rank()
}

// Conversation is a two-party thread between a provider and (eventually) a customer
type Conversation struct {
	ID            string             `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	ProviderID    string             `gorm:"column:provider_id;type:varchar(64);not null;uniqueIndex:idx_chat_conv_pair,priority:2;index" json:"provider_id"`
	CustomerID    *string            `gorm:"column:customer_id;type:varchar(64);uniqueIndex:idx_chat_conv_pair,priority:1;index" json:"customer_id,omitempty"`
	CustomerName  string             `gorm:"column:customer_name;type:varchar(255)" json:"customer_name"`
	CustomerEmail string             `gorm:"column:customer_email;type:varchar(255)" json:"customer_email,omitempty"`
	CustomerPhone string             `gorm:"column:customer_phone;type:varchar(50)" json:"customer_phone,omitempty"`
	Status        ConversationStatus `gorm:"column:status;type:varchar(20);default:active;not null" json:"status"`
	LastMessageAt time.Time          `gorm:"column:last_message_at;index" json:"last_message_at"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Conversation) TableName() string { return "chat_conversations" }

func (c *Conversation) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = newID()
	}
	if c.Status == "" {
		c.Status = ConversationActive
	}
	return nil
}

// ParticipantIDs returns the provider and, if claimed, the customer
func (c *Conversation) ParticipantIDs() []string {
	ids := []string{c.ProviderID}
	if c.CustomerID != nil && *c.CustomerID != "" {
		ids = append(ids, *c.CustomerID)
	}
	return ids
}

// Message is a single chat message; rows are never hard-deleted
type Message struct {
	ID             string       `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	ConversationID string       `gorm:"column:conversation_id;type:varchar(36);not null;index:idx_chat_msg_conv,priority:1" json:"conversation_id"`
	SenderID       *string      `gorm:"column:sender_id;type:varchar(64);index" json:"sender_id,omitempty"`
	SenderType     Role         `gorm:"column:sender_type;type:varchar(20);not null" json:"sender_type"`
	SenderName     string       `gorm:"column:sender_name;type:varchar(255)" json:"sender_name"`
	Type           MessageType  `gorm:"column:type;type:varchar(32);not null;default:text" json:"type"`
	Body           string       `gorm:"column:body;type:text;not null" json:"body"`
	SentAt         time.Time    `gorm:"column:sent_at;not null;index:idx_chat_msg_conv,priority:2" json:"sent_at"`
	EditedAt       *time.Time   `gorm:"column:edited_at" json:"edited_at,omitempty"`
	DeletedAt      *time.Time   `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
	IsRead         bool         `gorm:"column:is_read;not null;default:false" json:"is_read"`
	Attachments    []Attachment `gorm:"foreignKey:MessageID" json:"attachments"`
}

func (Message) TableName() string { return "chat_messages" }

func (m *Message) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = newID()
	}
	if m.Type == "" {
		m.Type = MessageText
	}
	return nil
}

// MessageState tags whether a message is untouched, edited or soft-deleted
type MessageState string

const (
	MessageStateActive  MessageState = "active"
	MessageStateEdited  MessageState = "edited"
	MessageStateDeleted MessageState = "deleted"
)

// State derives the tagged lifecycle state from the nullable timestamps
func (m *Message) State() MessageState {
	switch {
	case m.DeletedAt != nil:
		return MessageStateDeleted
	case m.EditedAt != nil:
		return MessageStateEdited
	default:
		return MessageStateActive
	}
}

// IsSentBy reports whether userID authored the message
func (m *Message) IsSentBy(userID string) bool {
	return m.SenderID != nil && userID != "" && *m.SenderID == userID
}

// Participant is the membership row that authorizes access to a conversation
type Participant struct {
	ConversationID    string         `gorm:"column:conversation_id;primaryKey;type:varchar(36)" json:"conversation_id"`
	UserID            string         `gorm:"column:user_id;primaryKey;type:varchar(64);index" json:"user_id"`
	Role              Role           `gorm:"column:role;type:varchar(20);not null" json:"role"`
	JoinedAt          time.Time      `gorm:"column:joined_at;autoCreateTime" json:"joined_at"`
	LastReadMessageID *string        `gorm:"column:last_read_message_id;type:varchar(36)" json:"last_read_message_id,omitempty"`
	Settings          datatypes.JSON `gorm:"column:settings" json:"settings,omitempty"`
}

func (Participant) TableName() string { return "chat_participants" }

// Attachment is a file referenced by a message
type Attachment struct {
	ID           string    `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	MessageID    string    `gorm:"column:message_id;type:varchar(36);not null;index" json:"message_id"`
	URL          string    `gorm:"column:url;type:varchar(1024);not null" json:"url"`
	MimeType     string    `gorm:"column:mime_type;type:varchar(128);not null" json:"mime_type"`
	Size         int64     `gorm:"column:size;not null;default:0" json:"size"`
	Width        *int      `gorm:"column:width" json:"width,omitempty"`
	Height       *int      `gorm:"column:height" json:"height,omitempty"`
	ThumbnailURL *string   `gorm:"column:thumbnail_url;type:varchar(1024)" json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Attachment) TableName() string { return "chat_attachments" }

func (a *Attachment) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = newID()
	}
	return nil
}

// Receipt is the per-recipient delivery/read acknowledgment of a message
type Receipt struct {
	MessageID       string        `gorm:"column:message_id;primaryKey;type:varchar(36)" json:"message_id"`
	RecipientUserID string        `gorm:"column:recipient_user_id;primaryKey;type:varchar(64)" json:"recipient_user_id"`
	Status          ReceiptStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	At              time.Time     `gorm:"column:at;not null" json:"at"`

	// ConversationID is filled by the service for fan-out; not persisted
	ConversationID string `gorm:"-" json:"conversation_id,omitempty"`
}

func (Receipt) TableName() string { return "chat_receipts" }

// newID returns a time-ordered identifier
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
