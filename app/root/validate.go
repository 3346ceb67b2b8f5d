package root

import (
	"bitwise74/learnhub-api/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Validate echoes the session established by the session middleware
func Validate(c *gin.Context) {
	s, _ := middleware.CurrentSession(c)
	c.JSON(http.StatusOK, s)
}
