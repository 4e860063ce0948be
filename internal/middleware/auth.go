package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/majstori/marketplace-chat/internal/common"
	"github.com/majstori/marketplace-chat/internal/domain"
	"github.com/majstori/marketplace-chat/pkg/jwt"
)

// Context keys set by JWTAuth
const (
	ctxUserID   = "userID"
	ctxUserName = "userName"
	ctxRole     = "role"
)

// Authenticate verifies a bearer token and normalizes its role claim.
// Shared by the REST middleware and the websocket handshake.
func Authenticate(jwtManager *jwt.Manager, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, &common.ChatError{Kind: common.ErrUnauthenticated, Message: "missing bearer token"}
	}
	claims, err := jwtManager.VerifyToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return nil, &common.ChatError{Kind: common.ErrUnauthenticated, Message: "token expired"}
		}
		return nil, &common.ChatError{Kind: common.ErrUnauthenticated, Message: "invalid token"}
	}
	role, ok := domain.ParseRole(claims.GetRole())
	if !ok {
		return nil, &common.ChatError{Kind: common.ErrUnauthenticated, Message: "token carries no chat role"}
	}
	return &domain.Identity{UserID: claims.GetUserID(), Role: role, Name: claims.Name}, nil
}

// BearerToken extracts the token from "Authorization: Bearer <token>"
func BearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// JWTAuth JWT authentication middleware
func JWTAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			common.ErrorResponse(c, http.StatusUnauthorized, "Missing authorization header", nil)
			c.Abort()
			return
		}

		identity, err := Authenticate(jwtManager, BearerToken(c))
		if err != nil {
			common.ErrorResponse(c, http.StatusUnauthorized, err.Error(), nil)
			c.Abort()
			return
		}

		SetIdentity(c, identity)
		c.Next()
	}
}

// SetIdentity stores the authenticated identity in the gin context
func SetIdentity(c *gin.Context, identity *domain.Identity) {
	c.Set(ctxUserID, identity.UserID)
	c.Set(ctxUserName, identity.Name)
	c.Set(ctxRole, identity.Role)
}

// GetUserID extracts user ID from context
func GetUserID(c *gin.Context) string {
	userID, exists := c.Get(ctxUserID)
	if !exists {
		return ""
	}
	if str, ok := userID.(string); ok {
		return str
	}
	return ""
}

// GetRole extracts the normalized role from context
func GetRole(c *gin.Context) domain.Role {
	role, exists := c.Get(ctxRole)
	if !exists {
		return ""
	}
	if r, ok := role.(domain.Role); ok {
		return r
	}
	return ""
}

// GetIdentity returns the caller identity, or false when the request was not authenticated
func GetIdentity(c *gin.Context) (domain.Identity, bool) {
	id := GetUserID(c)
	if id == "" {
		return domain.Identity{}, false
	}
	return domain.Identity{UserID: id, Role: GetRole(c), Name: c.GetString(ctxUserName)}, true
}
