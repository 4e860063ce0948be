package ginutil

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxIDLength bounds opaque path identifiers
const MaxIDLength = 64

// ParamID extracts an opaque string id from path parameters.
// ok is false when the value is empty or too long.
func ParamID(c *gin.Context, key string) (string, bool) {
	id := strings.TrimSpace(c.Param(key))
	if id == "" || len(id) > MaxIDLength {
		return "", false
	}
	return id, true
}
