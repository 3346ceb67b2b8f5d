// Package auth contains the signup, login, recovery and session endpoints
package auth

import (
	"bitwise74/learnhub-api/internal"
	"bitwise74/learnhub-api/internal/service"
	"bitwise74/learnhub-api/pkg/middleware"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Bind decodes the JSON body into dst and writes the error response itself
// when that fails
func Bind(c *gin.Context, dst any) bool {
	requestID := c.MustGet("requestID").(string)

	if err := c.ShouldBindJSON(dst); err != nil {
		if middleware.BodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":     "Request body size exceeds limit",
				"requestID": requestID,
			})
			return false
		}

		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})

		zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", requestID))
		return false
	}

	return true
}

func success(c *gin.Context, status int, msg string, extra gin.H) {
	body := gin.H{
		"success":   msg,
		"requestID": c.MustGet("requestID").(string),
	}

	for k, v := range extra {
		body[k] = v
	}

	c.JSON(status, body)
}

// RespondError maps a service error onto its status code and message
func RespondError(c *gin.Context, d *internal.Deps, err error) {
	requestID := c.MustGet("requestID").(string)

	var (
		verr  *service.ValidationError
		rlerr *service.RateLimitError
	)

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     verr.Error(),
			"fields":    verr.Fields,
			"requestID": requestID,
		})
		return
	case errors.As(err, &rlerr):
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rlerr.RetryAfter.Seconds()))))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":     rlerr.Error(),
			"requestID": requestID,
		})
		return
	}

	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, service.ErrMissingToken),
		errors.Is(err, service.ErrTokenExpired):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrSessionInvalid),
		errors.Is(err, service.ErrSessionExpired):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrEmailNotFound),
		errors.Is(err, service.ErrTokenNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrUnknownProvider):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateEmail):
		status = http.StatusConflict
	}

	if status != http.StatusInternalServerError {
		c.JSON(status, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	zap.L().Error("Request failed", zap.Error(err), zap.String("requestID", requestID))

	body := gin.H{
		"error":     "Something went wrong!",
		"requestID": requestID,
	}

	if !d.Production {
		body["detail"] = err.Error()
	}

	c.JSON(status, body)
}
