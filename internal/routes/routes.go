package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/majstori/marketplace-chat/internal/handler"
	"github.com/majstori/marketplace-chat/internal/middleware"
	"github.com/majstori/marketplace-chat/pkg/jwt"
	"github.com/redis/go-redis/v9"
)

// Setup configures the chat REST API and the socket endpoint
func Setup(
	router *gin.Engine,
	chatHandler *handler.ChatHandler,
	wsHandler *handler.WSHandler,
	jwtManager *jwt.Manager,
	redisClient *redis.Client,
	rateLimit middleware.RateLimitConfig,
) {
	api := router.Group("/api/v1/chat", middleware.JWTAuth(jwtManager))
	if redisClient != nil {
		api.Use(middleware.RateLimit(redisClient, rateLimit))
	}

	conversations := api.Group("/conversations")
	{
		conversations.GET("", chatHandler.ListConversations)
		conversations.POST("", chatHandler.CreateConversation)
		conversations.GET("/:id", chatHandler.GetConversation)
		conversations.POST("/:id/archive", chatHandler.ArchiveConversation)

		conversations.GET("/:id/messages", chatHandler.ListMessages)
		conversations.POST("/:id/messages", chatHandler.SendMessage)
		conversations.GET("/:id/unread", chatHandler.GetUnreadCount)
		conversations.POST("/:id/read", chatHandler.MarkAsRead)
	}

	messages := api.Group("/messages")
	{
		messages.PATCH("/:id", chatHandler.EditMessage)
		messages.DELETE("/:id", chatHandler.DeleteMessage)
		messages.POST("/:id/receipts", chatHandler.UpdateReceipt)
		messages.GET("/:id/receipts", chatHandler.GetReceipts)
	}

	// Socket auth happens on the handshake, not through JWTAuth
	router.GET("/ws/chat", wsHandler.Connect)
}
