package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminMiddleware guards the mutating endpoints (cache refresh, stats reset).
type AdminMiddleware struct {
	apiKey string
}

// NewAdminMiddleware creates the admin guard. An empty key disables the check.
func NewAdminMiddleware(apiKey string) *AdminMiddleware {
	return &AdminMiddleware{apiKey: apiKey}
}

// Enabled reports whether an admin key is configured.
func (am *AdminMiddleware) Enabled() bool {
	return am.apiKey != ""
}

// RequireAdminAuth accepts the key as a Bearer token or in X-API-Key.
func (am *AdminMiddleware) RequireAdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !am.Enabled() {
			c.Next()
			return
		}

		if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok && am.ValidateAdminKey(token) {
			c.Next()
			return
		}
		if am.ValidateAdminKey(c.GetHeader("X-API-Key")) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Valid admin API key required for this endpoint",
		})
	}
}

// ValidateAdminKey validates an admin API key
func (am *AdminMiddleware) ValidateAdminKey(key string) bool {
	if key == "" || am.apiKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(am.apiKey)) == 1
}
