package auth

import (
	"bitwise74/learnhub-api/internal"
	"bitwise74/learnhub-api/internal/service"
	"bitwise74/learnhub-api/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
)

func Login(c *gin.Context, d *internal.Deps) {
	var in service.LoginInput
	if !Bind(c, &in) {
		return
	}

	res, err := d.Auth.Login(c.Request.Context(), in)
	if err != nil {
		RespondError(c, d, err)
		return
	}

	signedIn(c, d, res)
}

type oauthBody struct {
	IDToken     string `json:"idToken"`
	CallbackURL string `json:"callbackUrl"`
}

func OAuth(c *gin.Context, d *internal.Deps) {
	var in oauthBody
	if !Bind(c, &in) {
		return
	}

	res, err := d.Auth.OAuthSignIn(c.Request.Context(), c.Param("provider"), in.IDToken, in.CallbackURL)
	if err != nil {
		RespondError(c, d, err)
		return
	}

	signedIn(c, d, res)
}

func signedIn(c *gin.Context, d *internal.Deps, res *service.LoginResult) {
	if res.VerificationSent {
		success(c, http.StatusOK, "Confirmation email sent!", gin.H{"verified": false})
		return
	}

	middleware.SetSessionCookies(c, d.Cookies, res.Session.Token)

	success(c, http.StatusOK, "Logged in!", gin.H{
		"redirect": res.Redirect,
		"session":  res.Session.Session(),
	})
}
