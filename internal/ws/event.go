package ws

import (
	"encoding/json"
	"time"

	"github.com/majstori/marketplace-chat/internal/domain"
)

// Client -> server events
const (
	EventTypingStart       = "typing:start"
	EventTypingStop        = "typing:stop"
	EventPresenceUpdate    = "presence:update"
	EventMessageSend       = "message:send"
	EventConversationJoin  = "conversation:join"
	EventConversationLeave = "conversation:leave"
	EventReceiptUpdate     = "receipt:update"
)

// Server -> client events
const (
	EventMessageNew          = "message:new"
	EventMessageUpdated      = "message:updated"
	EventMessageDeleted      = "message:deleted"
	EventConversationUpdated = "conversation:updated"
	EventTyping              = "typing"
	EventPresence            = "presence"
	EventReceiptUpdated      = "receipt:updated"
	EventError               = "error"
)

// Presence statuses
const (
	PresenceOnline  = "online"
	PresenceAway    = "away"
	PresenceOffline = "offline"
)

// Frame is the envelope of every websocket text message
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encodeFrame(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// Inbound payloads

type conversationPayload struct {
	ConversationID string `json:"conversationId" validate:"required,max=36"`
}

type presencePayload struct {
	Status string `json:"status" validate:"required,oneof=online away offline"`
}

type sendMessagePayload struct {
	ConversationID string             `json:"conversationId" validate:"required,max=36"`
	Type           domain.MessageType `json:"type" validate:"omitempty,max=32"`
	Body           string             `json:"body" validate:"required"`
	Attachments    []string           `json:"attachments" validate:"omitempty,max=10,dive,url"`
}

type receiptPayload struct {
	MessageID string               `json:"messageId" validate:"required,max=36"`
	Status    domain.ReceiptStatus `json:"status" validate:"required,oneof=delivered read"`
}

// Outbound payloads

type newMessagePayload struct {
	ConversationID string          `json:"conversationId"`
	Message        *domain.Message `json:"message"`
}

type messageUpdatedPayload struct {
	Message *domain.Message `json:"message"`
}

type messageDeletedPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

type typingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
	IsTyping       bool   `json:"isTyping"`
}

type presenceEvent struct {
	UserID string    `json:"userId"`
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

type receiptUpdatedPayload struct {
	MessageID       string               `json:"messageId"`
	RecipientUserID string               `json:"recipientUserId"`
	Status          domain.ReceiptStatus `json:"status"`
	At              time.Time            `json:"at"`
}

type errorPayload struct {
	Message string `json:"message"`
}
