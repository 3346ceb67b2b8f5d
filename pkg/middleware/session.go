package middleware

import (
	"bitwise74/learnhub-api/internal/service"
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionUpdateHeader asks for the cached profile in the session to be
// re-read from the user row
const SessionUpdateHeader = "X-Session-Update"

type SessionRefresher interface {
	RefreshSession(ctx context.Context, token string, update bool) (*service.SignedSession, error)
}

// RefreshSession runs the session cookie through the refresh chain and
// rewrites the cookie when the token was re-signed. Rejected sessions get
// their cookies cleared
func RefreshSession(c *gin.Context, r SessionRefresher, o CookieOptions, update bool) (*service.SignedSession, error) {
	token, err := c.Cookie(SessionCookieName(o.Secure))
	if err != nil || token == "" {
		return nil, service.ErrSessionInvalid
	}

	sess, err := r.RefreshSession(c.Request.Context(), token, update)
	if err != nil {
		if errors.Is(err, service.ErrSessionInvalid) || errors.Is(err, service.ErrSessionExpired) {
			ClearSessionCookies(c, o)
		}

		return nil, err
	}

	if sess.Renewed {
		SetSessionCookies(c, o, sess.Token)
	}

	return sess, nil
}

// NewSessionMiddleware requires a valid session and exposes it to handlers
// as "session" and "userID"
func NewSessionMiddleware(r SessionRefresher, o CookieOptions) gin.HandlerFunc {
	return sessionMiddleware(r, o, false)
}

// NewFreshSessionMiddleware is NewSessionMiddleware with the profile always
// re-read from the user row. Role-gated routes use it so a demoted user
// loses access on the next request
func NewFreshSessionMiddleware(r SessionRefresher, o CookieOptions) gin.HandlerFunc {
	return sessionMiddleware(r, o, true)
}

func sessionMiddleware(r SessionRefresher, o CookieOptions, alwaysUpdate bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.MustGet("requestID").(string)
		update := alwaysUpdate || c.GetHeader(SessionUpdateHeader) == "1" || c.GetHeader(SessionUpdateHeader) == "true"

		sess, err := RefreshSession(c, r, o, update)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrSessionExpired):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":     "Session expired. Please log in again",
					"requestID": requestID,
				})
			case errors.Is(err, service.ErrSessionInvalid):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":     "Not logged in",
					"requestID": requestID,
				})
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":     "Something went wrong!",
					"requestID": requestID,
				})

				zap.L().Error("Failed to refresh session", zap.Error(err), zap.String("requestID", requestID))
			}
			return
		}

		s := sess.Session()

		c.Set("session", s)
		c.Set("userID", s.User.ID)
		c.Next()
	}
}

// CurrentSession returns the session stored by NewSessionMiddleware
func CurrentSession(c *gin.Context) (*service.Session, bool) {
	v, ok := c.Get("session")
	if !ok {
		return nil, false
	}

	s, ok := v.(*service.Session)
	return s, ok
}
