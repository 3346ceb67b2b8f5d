package middleware

import (
	"bitwise74/learnhub-api/pkg/ratelimit"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRateLimiter limits requests per client IP. When the limiter backend
// fails the request is let through
func NewRateLimiter(l ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := l.Allow(c.Request.Context(), "ip:"+c.ClientIP())
		if err != nil {
			zap.L().Warn("Rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":     "Too many requests. " + ratelimit.WaitMessage(res.RetryAfter),
				"requestID": c.GetString("requestID"),
			})
			return
		}

		c.Next()
	}
}
