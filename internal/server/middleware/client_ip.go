package middleware

import "github.com/gin-gonic/gin"

// ClientIP returns a gin middleware that stores the client IP in the request
// context so code below the handler (audit logging) can read it without a gin
// dependency.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}
