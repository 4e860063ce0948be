package domain

import "time"

// Chat limits
const (
	MaxMessageBodyLength   = 10000
	MaxMessageAttachments  = 10
	DefaultMessagePageSize = 50
	MaxMessagePageSize     = 100
	DefaultConvPageSize    = 20
	MaxConvPageSize        = 100
	PreviewLength          = 100
)

// CreateConversationRequest represents POST /conversations
type CreateConversationRequest struct {
	ProviderID     string `json:"provider_id" binding:"omitempty,max=64"`
	CustomerID     string `json:"customer_id" binding:"omitempty,max=64"`
	CustomerName   string `json:"customer_name" binding:"omitempty,max=255"`
	CustomerEmail  string `json:"customer_email" binding:"omitempty,email,max=255"`
	CustomerPhone  string `json:"customer_phone" binding:"omitempty,max=50"`
	InitialMessage string `json:"initial_message"`
}

// SendMessageRequest represents a message write from either transport
type SendMessageRequest struct {
	ConversationID string      `json:"conversation_id" validate:"required"`
	Type           MessageType `json:"type" binding:"omitempty,max=32" validate:"omitempty,max=32"`
	Body           string      `json:"body" binding:"required" validate:"required"`
	Attachments    []string    `json:"attachments" binding:"omitempty,max=10,dive,url" validate:"omitempty,max=10,dive,url"`
}

// EditMessageRequest represents PATCH /messages/:id
type EditMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// UpdateReceiptRequest represents POST /messages/:id/receipts
type UpdateReceiptRequest struct {
	Status ReceiptStatus `json:"status" binding:"required,oneof=delivered read"`
}

// ConversationQuery paginates conversation listings
type ConversationQuery struct {
	Cursor string             `form:"cursor" binding:"omitempty,max=36"`
	Limit  int                `form:"limit" binding:"omitempty,min=1,max=100"`
	Status ConversationStatus `form:"status" binding:"omitempty,oneof=active archived"`
}

// MessageQuery paginates messages backwards from an anchor message id
type MessageQuery struct {
	Before string `form:"before" binding:"omitempty,max=36"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// MessagePreview is the last-message summary shown in conversation lists
type MessagePreview struct {
	ID         string      `json:"id"`
	Body       string      `json:"body"`
	Type       MessageType `json:"type"`
	SenderID   *string     `json:"sender_id,omitempty"`
	SenderType Role        `json:"sender_type"`
	SentAt     time.Time   `json:"sent_at"`
}

// ConversationView is a conversation enriched for a specific viewer
type ConversationView struct {
	Conversation
	ProviderName string          `json:"provider_name,omitempty"`
	UnreadCount  int64           `json:"unread_count"`
	LastMessage  *MessagePreview `json:"last_message,omitempty"`
}

// CreateConversationResult is returned by the idempotent create
type CreateConversationResult struct {
	Conversation   *Conversation `json:"conversation"`
	InitialMessage *Message      `json:"initial_message,omitempty"`
	Created        bool          `json:"created"`
}

// ConversationSummary is the payload of conversation:updated
type ConversationSummary struct {
	ConversationID string          `json:"conversationId"`
	LastMessageAt  time.Time       `json:"lastMessageAt"`
	LastMessage    *MessagePreview `json:"lastMessage"`
	UnreadCount    int64           `json:"unreadCount"`
}

// UnreadCount response body
type UnreadCount struct {
	ConversationID string `json:"conversation_id"`
	UnreadCount    int64  `json:"unread_count"`
}

// Preview builds the list preview of m, truncated to PreviewLength runes
func (m *Message) Preview() *MessagePreview {
	body := m.Body
	if m.DeletedAt != nil {
		body = ""
	} else if r := []rune(body); len(r) > PreviewLength {
		body = string(r[:PreviewLength]) + "…"
	}
	return &MessagePreview{
		ID:         m.ID,
		Body:       body,
		Type:       m.Type,
		SenderID:   m.SenderID,
		SenderType: m.SenderType,
		SentAt:     m.SentAt,
	}
}

// Tombstone blanks the content of a soft-deleted message for read paths
func (m *Message) Tombstone() {
	if m.DeletedAt == nil {
		return
	}
	m.Body = ""
	m.Attachments = []Attachment{}
}

// NormalizeAttachments makes a message without attachments serialize as an empty list
func (m *Message) NormalizeAttachments() {
	if m.Attachments == nil {
		m.Attachments = []Attachment{}
	}
}
