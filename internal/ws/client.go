package ws

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/majstori/marketplace-chat/internal/domain"
	"github.com/majstori/marketplace-chat/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
	handleTimeout  = 10 * time.Second
)

// Dispatcher handles inbound frames and the end of a connection
type Dispatcher interface {
	HandleFrame(ctx context.Context, c *Client, raw []byte)
	Disconnect(c *Client)
}

// Client represents a single WebSocket connection
type Client struct {
	id       string
	userID   string
	role     domain.Role
	userName string

	conn *websocket.Conn
	send chan []byte

	// guarded by Hub.mu
	rooms map[string]struct{}
}

// NewClient creates a new WebSocket client for an authenticated identity
func NewClient(conn *websocket.Conn, identity domain.Identity) *Client {
	return &Client{
		id:       uuid.NewString(),
		userID:   identity.UserID,
		role:     identity.Role,
		userName: identity.Name,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		rooms:    make(map[string]struct{}),
	}
}

// ID returns the socket id
func (c *Client) ID() string { return c.id }

// UserID returns the authenticated user behind the socket
func (c *Client) UserID() string { return c.userID }

// Identity returns the authenticated identity behind the socket
func (c *Client) Identity() domain.Identity {
	return domain.Identity{UserID: c.userID, Role: c.role, Name: c.userName}
}

// ReadPump reads frames and hands them to d one at a time
func (c *Client) ReadPump(d Dispatcher) {
	log := logger.WithSocket(c.id, c.userID)
	defer func() {
		d.Disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})

	for {
		msgType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("socket closed unexpectedly")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		d.HandleFrame(ctx, c, raw)
		cancel()
	}
}

// WritePump sends queued frames to the WebSocket and keeps it alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
