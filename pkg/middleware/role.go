package middleware

import (
	"bitwise74/learnhub-api/internal/model"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// RequireRole lets a request through only when the session role is one of
// roles. Must run after NewSessionMiddleware, or NewFreshSessionMiddleware
// when the role must not be taken from the cached token
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := CurrentSession(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Not logged in",
				"requestID": c.GetString("requestID"),
			})
			return
		}

		if !slices.Contains(roles, s.User.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     "You don't have permission to do that",
				"requestID": c.GetString("requestID"),
			})
			return
		}

		c.Next()
	}
}
