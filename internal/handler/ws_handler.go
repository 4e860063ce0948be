package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/majstori/marketplace-chat/internal/common"
	"github.com/majstori/marketplace-chat/internal/middleware"
	"github.com/majstori/marketplace-chat/internal/ws"
	"github.com/majstori/marketplace-chat/pkg/jwt"
	"github.com/majstori/marketplace-chat/pkg/logger"
)

// WSHandler authenticates and upgrades chat socket connections
type WSHandler struct {
	gateway        *ws.Gateway
	jwtManager     *jwt.Manager
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(gateway *ws.Gateway, jwtManager *jwt.Manager, allowedOrigins []string) *WSHandler {
	h := &WSHandler{
		gateway:        gateway,
		jwtManager:     jwtManager,
		allowedOrigins: normalizeOrigins(allowedOrigins),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func normalizeOrigins(origins []string) []string {
	result := make([]string, 0, len(origins))
	for _, o := range origins {
		trimmed := strings.TrimRight(strings.TrimSpace(o), "/")
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// checkOrigin validates the request origin against allowed origins
func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser clients send no Origin
	}
	if len(h.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

// Connect handles GET /ws/chat
// The bearer token comes from the Authorization header or, for browsers, the token query parameter.
// @Summary Chat websocket
// @Tags chat
// @Param token query string false "bearer token"
// @Router /ws/chat [get]
func (h *WSHandler) Connect(c *gin.Context) {
	token := middleware.BearerToken(c)
	if token == "" {
		token = c.Query("token")
	}

	identity, err := middleware.Authenticate(h.jwtManager, token)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, common.PublicMessage(err), nil)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log := logger.WithRequestID(middleware.GetRequestID(c))
		log.Debug().Err(err).Str("user_id", identity.UserID).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(conn, *identity)
	h.gateway.Connect(client)

	go client.WritePump()
	go client.ReadPump(h.gateway)
}
