package auth

import (
	"bitwise74/learnhub-api/internal"
	"bitwise74/learnhub-api/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

func Signup(c *gin.Context, d *internal.Deps) {
	var in service.SignupInput
	if !Bind(c, &in) {
		return
	}

	u, err := d.Auth.Signup(c.Request.Context(), in)
	if err != nil {
		RespondError(c, d, err)
		return
	}

	success(c, http.StatusCreated, "Confirmation email sent!", gin.H{"userID": u.ID})
}

func Verify(c *gin.Context, d *internal.Deps) {
	if _, err := d.Auth.Verify(c.Request.Context(), c.Query("token")); err != nil {
		RespondError(c, d, err)
		return
	}

	success(c, http.StatusOK, "Email verified!", nil)
}

func Resend(c *gin.Context, d *internal.Deps) {
	var in service.ResendInput
	if !Bind(c, &in) {
		return
	}

	if err := d.Auth.ResendVerification(c.Request.Context(), in); err != nil {
		RespondError(c, d, err)
		return
	}

	success(c, http.StatusOK, "Confirmation email sent!", nil)
}
