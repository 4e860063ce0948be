package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/majstori/marketplace-chat/internal/common"
	"github.com/majstori/marketplace-chat/internal/domain"
	"github.com/majstori/marketplace-chat/internal/service"
	"github.com/majstori/marketplace-chat/pkg/logger"
)

// Gateway owns live-connection bookkeeping and relays chat events.
// userSockets and typingUsers are process-local; rooms span instances through the Hub.
type Gateway struct {
	hub      *Hub
	chat     service.ChatService
	validate *validator.Validate
	now      func() time.Time

	// presenceMu orders online/offline transitions with their broadcasts
	presenceMu sync.Mutex

	mu          sync.Mutex
	userSockets map[string]map[string]struct{}
	typingUsers map[string]map[string]struct{}
}

// NewGateway creates a new Gateway
func NewGateway(hub *Hub, chat service.ChatService) *Gateway {
	return &Gateway{
		hub:         hub,
		chat:        chat,
		validate:    validator.New(),
		now:         func() time.Time { return time.Now().UTC() },
		userSockets: make(map[string]map[string]struct{}),
		typingUsers: make(map[string]map[string]struct{}),
	}
}

// Connect registers an authenticated socket and announces the user online on their first socket
func (g *Gateway) Connect(c *Client) {
	g.hub.Register(c)
	g.hub.Join(c, UserRoom(c.userID))

	g.presenceMu.Lock()
	defer g.presenceMu.Unlock()

	g.mu.Lock()
	sockets := g.userSockets[c.userID]
	if sockets == nil {
		sockets = make(map[string]struct{})
		g.userSockets[c.userID] = sockets
	}
	sockets[c.id] = struct{}{}
	first := len(sockets) == 1
	g.mu.Unlock()

	log := logger.WithSocket(c.id, c.userID)
	log.Info().Bool("first_socket", first).Msg("socket connected")
	if first {
		g.hub.Broadcast(c.id, EventPresence, presenceEvent{UserID: c.userID, Status: PresenceOnline, At: g.now()})
	}
}

// Disconnect removes the socket, announces offline after the last one and clears typing state
func (g *Gateway) Disconnect(c *Client) {
	if !g.hub.Unregister(c) {
		return
	}

	g.presenceMu.Lock()
	defer g.presenceMu.Unlock()

	g.mu.Lock()
	last := false
	if sockets, ok := g.userSockets[c.userID]; ok {
		delete(sockets, c.id)
		if len(sockets) == 0 {
			delete(g.userSockets, c.userID)
			last = true
		}
	}
	var stopped []string
	for convID, typers := range g.typingUsers {
		if _, ok := typers[c.userID]; ok {
			delete(typers, c.userID)
			if len(typers) == 0 {
				delete(g.typingUsers, convID)
			}
			stopped = append(stopped, convID)
		}
	}
	g.mu.Unlock()

	for _, convID := range stopped {
		g.hub.Emit([]string{ConversationRoom(convID)}, c.id, EventTyping, typingPayload{
			ConversationID: convID,
			UserID:         c.userID,
			UserName:       c.userName,
			IsTyping:       false,
		})
	}

	log := logger.WithSocket(c.id, c.userID)
	log.Info().Bool("last_socket", last).Msg("socket disconnected")
	if last {
		g.hub.Broadcast(c.id, EventPresence, presenceEvent{UserID: c.userID, Status: PresenceOffline, At: g.now()})
	}
}

// IsOnline reports whether the user has a socket on this instance
func (g *Gateway) IsOnline(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.userSockets[userID]) > 0
}

// SocketCount returns how many sockets the user has on this instance
func (g *Gateway) SocketCount(userID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.userSockets[userID])
}

// TypingUsers returns who is typing in a conversation
func (g *Gateway) TypingUsers(conversationID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	users := make([]string, 0, len(g.typingUsers[conversationID]))
	for id := range g.typingUsers[conversationID] {
		users = append(users, id)
	}
	return users
}

// HandleFrame dispatches one inbound frame. Business errors go back to this socket only.
func (g *Gateway) HandleFrame(ctx context.Context, c *Client, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		g.fail(c, common.Validation("malformed frame"))
		return
	}
	wsEventsTotal.WithLabelValues(frame.Event, "in").Inc()

	var err error
	switch frame.Event {
	case EventTypingStart:
		err = g.onTyping(ctx, c, frame.Data, true)
	case EventTypingStop:
		err = g.onTyping(ctx, c, frame.Data, false)
	case EventPresenceUpdate:
		err = g.onPresence(c, frame.Data)
	case EventMessageSend:
		err = g.onMessageSend(ctx, c, frame.Data)
	case EventConversationJoin:
		err = g.onJoin(ctx, c, frame.Data, true)
	case EventConversationLeave:
		err = g.onJoin(ctx, c, frame.Data, false)
	case EventReceiptUpdate:
		err = g.onReceipt(ctx, c, frame.Data)
	default:
		err = common.Validation("unknown event %q", frame.Event)
	}
	if err != nil {
		g.fail(c, err)
	}
}

func (g *Gateway) fail(c *Client, err error) {
	if common.StatusFromError(err) >= 500 {
		log := logger.WithSocket(c.id, c.userID)
		log.Error().Err(err).Msg("socket event failed")
	}
	g.hub.EmitTo(c, EventError, errorPayload{Message: common.PublicMessage(err)})
}

// decode unmarshals and validates an event payload
func (g *Gateway) decode(data json.RawMessage, dest interface{}) error {
	if len(data) == 0 {
		return common.Validation("missing payload")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return common.Validation("malformed payload")
	}
	if err := g.validate.Struct(dest); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return common.Validation("%s failed on %s", verrs[0].Field(), verrs[0].Tag())
		}
		return common.Validation("invalid payload")
	}
	return nil
}

func (g *Gateway) onTyping(ctx context.Context, c *Client, data json.RawMessage, typing bool) error {
	var p conversationPayload
	if err := g.decode(data, &p); err != nil {
		return err
	}
	if err := g.chat.CheckParticipant(ctx, p.ConversationID, c.userID); err != nil {
		return err
	}

	g.mu.Lock()
	typers := g.typingUsers[p.ConversationID]
	if typing {
		if typers == nil {
			typers = make(map[string]struct{})
			g.typingUsers[p.ConversationID] = typers
		}
		typers[c.userID] = struct{}{}
	} else if typers != nil {
		delete(typers, c.userID)
		if len(typers) == 0 {
			delete(g.typingUsers, p.ConversationID)
		}
	}
	g.mu.Unlock()

	g.hub.Emit([]string{ConversationRoom(p.ConversationID)}, c.id, EventTyping, typingPayload{
		ConversationID: p.ConversationID,
		UserID:         c.userID,
		UserName:       c.userName,
		IsTyping:       typing,
	})
	return nil
}

func (g *Gateway) onPresence(c *Client, data json.RawMessage) error {
	var p presencePayload
	if err := g.decode(data, &p); err != nil {
		return err
	}
	g.hub.Broadcast(c.id, EventPresence, presenceEvent{UserID: c.userID, Status: p.Status, At: g.now()})
	return nil
}

func (g *Gateway) onMessageSend(ctx context.Context, c *Client, data json.RawMessage) error {
	var p sendMessagePayload
	if err := g.decode(data, &p); err != nil {
		return err
	}
	msg, err := g.chat.SendMessage(ctx, &domain.SendMessageRequest{
		ConversationID: p.ConversationID,
		Type:           p.Type,
		Body:           p.Body,
		Attachments:    p.Attachments,
	}, c.Identity())
	if err != nil {
		return err
	}
	g.EmitNewMessage(ctx, msg)
	return nil
}

func (g *Gateway) onJoin(ctx context.Context, c *Client, data json.RawMessage, join bool) error {
	var p conversationPayload
	if err := g.decode(data, &p); err != nil {
		return err
	}
	if err := g.chat.CheckParticipant(ctx, p.ConversationID, c.userID); err != nil {
		return err
	}
	if join {
		g.hub.Join(c, ConversationRoom(p.ConversationID))
	} else {
		g.hub.Leave(c, ConversationRoom(p.ConversationID))
	}
	return nil
}

func (g *Gateway) onReceipt(ctx context.Context, c *Client, data json.RawMessage) error {
	var p receiptPayload
	if err := g.decode(data, &p); err != nil {
		return err
	}
	receipt, err := g.chat.UpdateReceipt(ctx, p.MessageID, c.Identity(), p.Status)
	if err != nil {
		return err
	}
	g.EmitReceiptUpdated(ctx, receipt)
	return nil
}

// participantRooms returns the user rooms of both parties plus the conversation room
func (g *Gateway) participantRooms(ctx context.Context, conversationID string) ([]string, error) {
	ids, err := g.chat.ParticipantIDs(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	rooms := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		rooms = append(rooms, UserRoom(id))
	}
	return append(rooms, ConversationRoom(conversationID)), nil
}

// EmitNewMessage fans out message:new and a per-participant conversation:updated
func (g *Gateway) EmitNewMessage(ctx context.Context, msg *domain.Message) {
	rooms, err := g.participantRooms(ctx, msg.ConversationID)
	if err != nil {
		g.logEmitError(err, EventMessageNew, msg.ConversationID)
		return
	}
	g.hub.Emit(rooms, "", EventMessageNew, newMessagePayload{ConversationID: msg.ConversationID, Message: msg})

	actor := ""
	if msg.SenderID != nil {
		actor = *msg.SenderID
	}
	g.emitSummaries(ctx, msg.ConversationID, actor, false)
}

// EmitMessageUpdated relays an edit to both participants and the conversation room
func (g *Gateway) EmitMessageUpdated(ctx context.Context, msg *domain.Message) {
	rooms, err := g.participantRooms(ctx, msg.ConversationID)
	if err != nil {
		g.logEmitError(err, EventMessageUpdated, msg.ConversationID)
		return
	}
	g.hub.Emit(rooms, "", EventMessageUpdated, messageUpdatedPayload{Message: msg})
}

// EmitMessageDeleted relays a soft delete to both participants and the conversation room
func (g *Gateway) EmitMessageDeleted(ctx context.Context, msg *domain.Message) {
	rooms, err := g.participantRooms(ctx, msg.ConversationID)
	if err != nil {
		g.logEmitError(err, EventMessageDeleted, msg.ConversationID)
		return
	}
	g.hub.Emit(rooms, "", EventMessageDeleted, messageDeletedPayload{ConversationID: msg.ConversationID, MessageID: msg.ID})
}

// EmitReceiptUpdated relays a delivery/read acknowledgment
func (g *Gateway) EmitReceiptUpdated(ctx context.Context, receipt *domain.Receipt) {
	rooms, err := g.participantRooms(ctx, receipt.ConversationID)
	if err != nil {
		g.logEmitError(err, EventReceiptUpdated, receipt.ConversationID)
		return
	}
	g.hub.Emit(rooms, "", EventReceiptUpdated, receiptUpdatedPayload{
		MessageID:       receipt.MessageID,
		RecipientUserID: receipt.RecipientUserID,
		Status:          receipt.Status,
		At:              receipt.At,
	})
}

// EmitConversationRead pushes the reader's refreshed summary to all of their sockets
func (g *Gateway) EmitConversationRead(ctx context.Context, conversationID, readerID string) {
	g.emitSummaries(ctx, conversationID, readerID, true)
}

func (g *Gateway) emitSummaries(ctx context.Context, conversationID, actorID string, actorOnly bool) {
	summaries, err := g.chat.ParticipantSummaries(ctx, conversationID, actorID)
	if err != nil {
		g.logEmitError(err, EventConversationUpdated, conversationID)
		return
	}
	for userID, summary := range summaries {
		if actorOnly && userID != actorID {
			continue
		}
		g.hub.Emit([]string{UserRoom(userID)}, "", EventConversationUpdated, summary)
	}
}

func (g *Gateway) logEmitError(err error, event, conversationID string) {
	logger.GetLogger().Warn().Err(err).Str("event", event).Str("conversation_id", conversationID).Msg("fan-out skipped")
}
