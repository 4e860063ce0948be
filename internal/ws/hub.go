package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/majstori/marketplace-chat/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const redisPubSubChannel = "chat:events"

// UserRoom is the private room every socket of a user joins on connect
func UserRoom(userID string) string { return "user:" + userID }

// ConversationRoom is joined explicitly by sockets viewing a conversation
func ConversationRoom(conversationID string) string { return "conversation:" + conversationID }

// Hub tracks sockets and room membership and delivers frames to rooms.
// Rooms span instances through Redis pub/sub.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client

	instanceID  string
	redisClient *redis.Client
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewHub creates a new Hub. redisClient may be nil for single-instance deployments.
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]*Client),
		rooms:       make(map[string]map[string]*Client),
		instanceID:  uuid.NewString(),
		redisClient: redisClient,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run consumes frames published by other instances until Stop is called
func (h *Hub) Run() {
	if h.redisClient == nil {
		<-h.ctx.Done()
		return
	}
	h.subscribeRedis()
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() {
	h.cancel()
}

// Register adds a client to the hub
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	wsConnections.Inc()
}

// Unregister removes the client from every room and closes its send buffer.
// It reports false when the client was already gone.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.id]; !ok {
		return false
	}
	delete(h.clients, c.id)
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	close(c.send)
	wsConnections.Dec()
	return true
}

// Join adds the client to room
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.id]; !ok {
		return
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[c.id] = c
	c.rooms[room] = struct{}{}
}

// Leave removes the client from room
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	h.leaveLocked(c, room)
	h.mu.Unlock()
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// InRoom reports whether the client currently belongs to room
func (h *Hub) InRoom(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][c.id]
	return ok
}

// ClientCount returns the number of sockets connected to this instance
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Emit sends one frame to every socket in any of rooms, at most once per socket,
// skipping the socket id in except. It is also published to the other instances.
func (h *Hub) Emit(rooms []string, except string, event string, data interface{}) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		logger.GetLogger().Error().Err(err).Str("event", event).Msg("encode frame failed")
		return
	}
	h.deliver(rooms, except, frame)
	wsEventsTotal.WithLabelValues(event, "out").Inc()

	if h.redisClient != nil {
		h.publish(&redisMessage{Origin: h.instanceID, Rooms: rooms, Except: except, Frame: frame})
	}
}

// Broadcast sends one frame to every socket on every instance except the given socket id
func (h *Hub) Broadcast(except string, event string, data interface{}) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		logger.GetLogger().Error().Err(err).Str("event", event).Msg("encode frame failed")
		return
	}
	h.deliverAll(except, frame)
	wsEventsTotal.WithLabelValues(event, "out").Inc()

	if h.redisClient != nil {
		h.publish(&redisMessage{Origin: h.instanceID, All: true, Except: except, Frame: frame})
	}
}

// EmitTo sends a frame to a single local socket
func (h *Hub) EmitTo(c *Client, event string, data interface{}) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		logger.GetLogger().Error().Err(err).Str("event", event).Msg("encode frame failed")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.id]; ok {
		h.push(c, frame)
	}
	wsEventsTotal.WithLabelValues(event, "out").Inc()
}

func (h *Hub) deliver(rooms []string, except string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, room := range rooms {
		for id, c := range h.rooms[room] {
			if id == except {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			h.push(c, frame)
		}
	}
}

func (h *Hub) deliverAll(except string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, c := range h.clients {
		if id != except {
			h.push(c, frame)
		}
	}
}

// push must be called with h.mu held; the send buffer is only closed under the write lock
func (h *Hub) push(c *Client, frame []byte) {
	select {
	case c.send <- frame:
	default:
		wsDroppedFrames.Inc()
		logger.GetLogger().Warn().Str("socket_id", c.id).Str("user_id", c.userID).Msg("send buffer full, frame dropped")
	}
}

type redisMessage struct {
	Origin string          `json:"origin"`
	Rooms  []string        `json:"rooms,omitempty"`
	All    bool            `json:"all,omitempty"`
	Except string          `json:"except,omitempty"`
	Frame  json.RawMessage `json:"frame"`
}

func (h *Hub) publish(msg *redisMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := h.redisClient.Publish(h.ctx, redisPubSubChannel, data).Err(); err != nil {
		logger.GetLogger().Warn().Err(err).Msg("redis publish failed")
	}
}

// subscribeRedis delivers frames published by other instances
func (h *Hub) subscribeRedis() {
	pubsub := h.redisClient.Subscribe(h.ctx, redisPubSubChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.handleRemote([]byte(msg.Payload))
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) handleRemote(payload []byte) {
	var rm redisMessage
	if err := json.Unmarshal(payload, &rm); err != nil {
		logger.GetLogger().Warn().Err(err).Msg("malformed pub/sub message")
		return
	}
	// our own publication was already delivered locally
	if rm.Origin == h.instanceID {
		return
	}
	if rm.All {
		h.deliverAll(rm.Except, rm.Frame)
		return
	}
	h.deliver(rm.Rooms, rm.Except, rm.Frame)
}
