package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"accessgate/internal/security"
)

const bearerPrefix = "bearer "

// Auth returns a gin middleware that validates the Bearer (access) token and
// sets user_id and session_id in the request context for protected routes.
func Auth(tokens *security.TokenProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization"})
			return
		}
		sessionID, userID, err := tokens.ValidateAccess(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization"})
			return
		}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), userID, sessionID))
		c.Next()
	}
}

// OptionalAuth sets the identity in context when a valid Bearer token is
// present and passes the request through either way. Used on routes that
// accept both token-carrying and anonymous callers (logout).
func OptionalAuth(tokens *security.TokenProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractBearer(c.GetHeader("Authorization")); token != "" {
			if sessionID, userID, err := tokens.ValidateAccess(token); err == nil {
				c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), userID, sessionID))
			}
		}
		c.Next()
	}
}

// extractBearer returns the Bearer token from the header value, or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
