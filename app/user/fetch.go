package user

import (
	"bitwise74/learnhub-api/app/auth"
	"bitwise74/learnhub-api/internal"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Me returns the profile of the signed-in user
func Me(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	u, err := d.Auth.User(c.Request.Context(), userID)
	if err != nil {
		auth.RespondError(c, d, err)
		return
	}

	c.JSON(http.StatusOK, u)
}
