package root

import (
	"bitwise74/learnhub-api/internal"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func Heartbeat(c *gin.Context, d *internal.Deps) {
	if err := d.Ping(c.Request.Context()); err != nil {
		zap.L().Warn("Heartbeat failed", zap.Error(err))
		c.Status(http.StatusServiceUnavailable)
		return
	}

	c.Status(http.StatusOK)
}
