package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	sessionCookie       = "session_token"
	secureSessionCookie = "__Secure-session_token"
	loggedInCookie      = "logged_in"
)

type CookieOptions struct {
	Secure bool
	MaxAge time.Duration
}

// SessionCookieName is prefixed with __Secure- when cookies are secure so
// browsers refuse to accept it over plain http
func SessionCookieName(secure bool) string {
	if secure {
		return secureSessionCookie
	}

	return sessionCookie
}

// SetSessionCookies writes the http-only session cookie and a readable
// logged_in marker for the frontend
func SetSessionCookies(c *gin.Context, o CookieOptions, token string) {
	maxAge := int(o.MaxAge.Seconds())

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName(o.Secure), token, maxAge, "/", "", o.Secure, true)
	c.SetCookie(loggedInCookie, "1", maxAge, "/", "", o.Secure, false)
}

func ClearSessionCookies(c *gin.Context, o CookieOptions) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName(o.Secure), "", -1, "/", "", o.Secure, true)
	c.SetCookie(loggedInCookie, "", -1, "/", "", o.Secure, false)
}
