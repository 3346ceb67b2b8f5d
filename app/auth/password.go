package auth

import (
	"bitwise74/learnhub-api/internal"
	"bitwise74/learnhub-api/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

func ForgotPassword(c *gin.Context, d *internal.Deps) {
	var in service.ForgotPasswordInput
	if !Bind(c, &in) {
		return
	}

	if err := d.Auth.ForgotPassword(c.Request.Context(), in); err != nil {
		RespondError(c, d, err)
		return
	}

	success(c, http.StatusOK, "Reset email sent!", nil)
}

func ResetPassword(c *gin.Context, d *internal.Deps) {
	token := c.Query("token")
	if token == "" {
		RespondError(c, d, service.ErrMissingToken)
		return
	}

	var in service.ResetPasswordInput
	if !Bind(c, &in) {
		return
	}

	if err := d.Auth.ResetPassword(c.Request.Context(), token, in); err != nil {
		RespondError(c, d, err)
		return
	}

	success(c, http.StatusOK, "Password updated!", nil)
}
