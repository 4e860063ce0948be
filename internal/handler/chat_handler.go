package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/majstori/marketplace-chat/internal/common"
	"github.com/majstori/marketplace-chat/internal/domain"
	"github.com/majstori/marketplace-chat/internal/middleware"
	"github.com/majstori/marketplace-chat/internal/service"
	"github.com/majstori/marketplace-chat/pkg/ginutil"
)

// ChatEvents pushes committed writes to connected sockets.
// The socket gateway implements it and uses it for its own writes too.
type ChatEvents interface {
	EmitNewMessage(ctx context.Context, msg *domain.Message)
	EmitMessageUpdated(ctx context.Context, msg *domain.Message)
	EmitMessageDeleted(ctx context.Context, msg *domain.Message)
	EmitReceiptUpdated(ctx context.Context, receipt *domain.Receipt)
	EmitConversationRead(ctx context.Context, conversationID, readerID string)
}

// ChatHandler handles chat HTTP requests
type ChatHandler struct {
	service service.ChatService
	events  ChatEvents
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service service.ChatService, events ChatEvents) *ChatHandler {
	return &ChatHandler{service: service, events: events}
}

// identity returns the caller or writes a 401
func identity(c *gin.Context) (domain.Identity, bool) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "Authentication required", nil)
	}
	return id, ok
}

func pathID(c *gin.Context, key string) (string, bool) {
	id, ok := ginutil.ParamID(c, key)
	if !ok {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid "+key, nil)
	}
	return id, ok
}

// fanoutContext outlives the request so a client hanging up does not cancel delivery to others
func fanoutContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// ListConversations handles GET /conversations
// @Summary List the caller's conversations
// @Tags chat
// @Produce json
// @Param cursor query string false "id of the last conversation of the previous page"
// @Param limit query int false "page size (max 100)"
// @Param status query string false "active | archived"
// @Success 200 {object} common.APIResponse{data=[]domain.ConversationView}
// @Router /chat/conversations [get]
func (h *ChatHandler) ListConversations(c *gin.Context) {
	viewer, ok := identity(c)
	if !ok {
		return
	}

	var q domain.ConversationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid query", err)
		return
	}

	views, meta, err := h.service.ListConversations(c.Request.Context(), viewer, q)
	if err != nil {
		common.FailFromError(c, err)
		return
	}
	common.SuccessWithMeta(c, views, meta)
}

// CreateConversation handles POST /conversations
// @Summary Create or fetch the conversation with a provider
// @Tags chat
// @Accept json
// @Produce json
// @Param request body domain.CreateConversationRequest true "parties and optional first message"
// @Success 201 {object} common.APIResponse{data=domain.CreateConversationResult}
// @Router /chat/conversations [post]
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	creator, ok := identity(c)
	if !ok {
		return
	}

	var req domain.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.service.CreateConversation(c.Request.Context(), &req, &creator)
	if err != nil {
		common.FailFromError(c, err)
		return
	}
	if result.InitialMessage != nil {
		h.events.EmitNewMessage(fanoutContext(c), result.InitialMessage)
	}

	if result.Created {
		common.Created(c, result)
		return
	}
	common.Success(c, result)
}

// GetConversation handles GET /conversations/:id
// @Summary Get one conversation
// @Tags chat
// @Produce json
// @Param id path string true "conversation id"
// @Success 200 {object} common.APIResponse{data=domain.ConversationView}
// @Router /chat/conversations/{id} [get]
func (h *ChatHandler) GetConversation(c *gin.Context) {
	viewer, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	view, err := h.service.GetConversation(c.Request.Context(), id, viewer)
	if err != nil {
		common.FailFromError(c, err)
		return
	}
	common.Success(c, view)
}

// ArchiveConversation handles POST /conversations/:id/archive
// @Summary Archive a conversation (reserved, returns 501)
// @Tags chat
// @Param id path string true "conversation id"
// @Failure 501 {object} common.APIResponse
// @Router /chat/conversations/{id}/archive [post]
func (h *ChatHandler) ArchiveConversation(c *gin.Context) {
	viewer, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.ArchiveConversation(c.Request.Context(), id, viewer); err != nil {
		common.FailFromError(c, err)
		return
	}
	common.Success(c, gin.H{"conversation_id": id})
}

// ListMessages handles GET /conversations/:id/messages
// @Summary Page through messages, newest first
// @Tags chat
// @Produce json
// @Param id path string true "conversation id"
// @Param before query string false "message id to page back from"
// @Param limit query int false "page size (max 100)"
// @Success 200 {object} common.APIResponse{data=[]domain.Message}
// @Router /chat/conversations/{id}/messages [get]
func (h *ChatHandler) ListMessages(c *gin.Context) {
	viewer, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var q domain.MessageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid query", err)
		return
	}

	messages, meta, err := h.service.ListMessages(c.Request.Context(), id, viewer, q)
	if err != nil {
		common.FailFromError(c, err)
		return
	}
	common.SuccessWithMeta(c, messages, meta)
}

// SendMessage handles POST /conversations/:id/messages
// @Summary Send a message
// @Tags chat
// @Accept json
// @Produce json
// @Param id path string true "conversation id"
// @Param request body domain.SendMessageRequest true "message"
// @Success 201 {object} common.APIResponse{data=domain.Message}
// @Router /chat/conversations/{id}/messages [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	sender, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.ConversationID = id

	msg, err := h.service.SendMessage(c.Request.Context(), &req, sender)
	if err != nil {
		common.FailFromError(c, err)
		return
	}
	h.events.EmitNewMessage(fanoutContext(c), msg)
	common.Created(c, msg)
}

// GetUnreadCount handles GET /conversations/:id/unread
// @Summary Unread message count for the caller
// @Tags chat
// @Produce json
// @Param id path string true "conversation id"
// @Success 200 {object} common.APIResponse{data=domain.UnreadCount}
// @Router /chat/conversations/{id}/unread [get]
func (h *ChatHandler) GetUnreadCount(c *gin.Context) {
	viewer, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	count, err := h.service.GetUnreadCount(c.Request.Context(), id, viewer)
	if err != nil {
		common.FailFromError(c, err)
		return
	}
	common.Success(c, domain.UnreadCount{ConversationID: id, UnreadCount: count})
}

// MarkAsRead handles POST /conversations/:id/read
// @Summary Mark every message from the other side as read
// @Tags chat
// @Produce json
// @Param id path string true "conversation id"
// @Success 200 {object} common.APIResponse{data=domain.UnreadCount}
// @Router /chat/conversations/{id}/read [post]
func (h *ChatHandler) MarkAsRead(c *gin.Context) {
	viewer, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.MarkAsRead(c.Request.Context(), id, viewer); err != nil {
		common.FailFromError(c, err)
		return
	}
	h.events.EmitConversationRead(fanoutContext(c), id, viewer.UserID)
	common.Success(c, domain.UnreadCount{ConversationID: id, UnreadCount: 0})
}

// EditMessage handles PATCH /messages/:id
// @Summary Edit a message body (sender only)
// @Tags chat
// @Accept json
// @Produce json
// @Param id path string true "message id"
// @Param request body domain.EditMessageRequest true "new body"
// @Success 200 {object} common.APIResponse{data=domain.Message}
// @Router /chat/messages/{id} [patch]
func (h *ChatHandler) EditMessage(c *gin.Context) {
	editor, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req domain.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	msg, err := h.service.EditMessage(c.Request.Context(), id, req.Body, editor)
	if err != nil {
		common.FailFromError(c, err)
		return
	}
	h.events.EmitMessageUpdated(fanoutContext(c), msg)
	common.Success(c, msg)
}

// DeleteMessage handles DELETE /messages/:id
// @Summary Soft-delete a message (sender only)
// @Tags chat
// @Produce json
// @Param id path string true "message id"
// @Success 200 {object} common.APIResponse{data=domain.Message}
// @Router /chat/messages/{id} [delete]
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	viewer, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	msg, err := h.service.DeleteMessage(c.Request.Context(), id, viewer.UserID)
	if err != nil {
		common.FailFromError(c, err)
		return
	}
	h.events.EmitMessageDeleted(fanoutContext(c), msg)
	common.Success(c, msg)
}

// UpdateReceipt handles POST /messages/:id/receipts
// @Summary Acknowledge delivery or reading of a message
// @Tags chat
// @Accept json
// @Produce json
// @Param id path string true "message id"
// @Param request body domain.UpdateReceiptRequest true "delivered | read"
// @Success 200 {object} common.APIResponse{data=domain.Receipt}
// @Router /chat/messages/{id}/receipts [post]
func (h *ChatHandler) UpdateReceipt(c *gin.Context) {
	recipient, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req domain.UpdateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	receipt, err := h.service.UpdateReceipt(c.Request.Context(), id, recipient, req.Status)
	if err != nil {
		common.FailFromError(c, err)
		return
	}
	h.events.EmitReceiptUpdated(fanoutContext(c), receipt)
	common.Success(c, receipt)
}

// GetReceipts handles GET /messages/:id/receipts
// @Summary List receipts of a message
// @Tags chat
// @Produce json
// @Param id path string true "message id"
// @Success 200 {object} common.APIResponse{data=[]domain.Receipt}
// @Router /chat/messages/{id}/receipts [get]
func (h *ChatHandler) GetReceipts(c *gin.Context) {
	viewer, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	receipts, err := h.service.GetReceipts(c.Request.Context(), id, viewer.UserID)
	if err != nil {
		common.FailFromError(c, err)
		return
	}
	common.Success(c, receipts)
}
