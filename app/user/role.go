package user

import (
	"bitwise74/learnhub-api/app/auth"
	"bitwise74/learnhub-api/internal"
	"bitwise74/learnhub-api/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func ChangeRole(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var in service.ChangeRoleInput
	if !auth.Bind(c, &in) {
		return
	}

	actorID := c.MustGet("userID").(string)

	u, err := d.Auth.ChangeRole(c.Request.Context(), actorID, c.Param("id"), in)
	if err != nil {
		auth.RespondError(c, d, err)
		return
	}

	zap.L().Info("Role changed",
		zap.String("userID", u.ID),
		zap.String("role", string(u.Role)),
		zap.String("by", actorID),
		zap.String("requestID", requestID),
	)

	c.JSON(http.StatusOK, u)
}
