package service

import (
	"bitwise74/learnhub-api/internal/model"
	"bitwise74/learnhub-api/internal/store"
	"bitwise74/learnhub-api/pkg/security"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Session is the view of a session token the rest of the application reads
type Session struct {
	User    SessionUser `json:"user"`
	Expires time.Time   `json:"expires"`
}

type SessionUser struct {
	ID    string     `json:"id"`
	Email string     `json:"email"`
	Name  string     `json:"name,omitempty"`
	Role  model.Role `json:"role"`
}

// SignedSession is a session token together with its decoded claims
type SignedSession struct {
	Token  string
	Claims *security.SessionClaims
	// Renewed is set when the token was re-signed and must be sent back
	Renewed bool
}

func (s *SignedSession) Session() *Session {
	return Materialize(s.Claims)
}

// Materialize copies the subject and its cached profile onto a Session
func Materialize(c *security.SessionClaims) *Session {
	s := &Session{
		User: SessionUser{
			ID:    c.Subject,
			Email: c.Email,
			Name:  c.Name,
			Role:  c.Role,
		},
	}

	if c.ExpiresAt != nil {
		s.Expires = c.ExpiresAt.Time
	}

	return s
}

// IssueSession signs a fresh session for u
func (a *Auth) IssueSession(u *model.User) (*SignedSession, error) {
	now := a.now()

	claims := &security.SessionClaims{
		Email:    u.Email,
		Name:     u.Name,
		Role:     u.Role,
		AuthTime: now.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(a.expiry(now, now)),
		},
	}

	token, err := a.signer.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token, %w", err)
	}

	return &SignedSession{Token: token, Claims: claims, Renewed: true}, nil
}

// expiry is now + max age, capped by the absolute lifetime of the session
func (a *Auth) expiry(now, authTime time.Time) time.Time {
	exp := now.Add(a.cfg.SessionMaxAge)

	if a.cfg.SessionAbsoluteMaxAge > 0 {
		if ceiling := authTime.Add(a.cfg.SessionAbsoluteMaxAge); exp.After(ceiling) {
			exp = ceiling
		}
	}

	return exp
}

// RefreshSession runs a session token through the refresh chain. With update
// set the cached profile is re-read from the user row, so role changes show
// up without a new sign-in. A token missing its role gets it patched in, and
// a token whose expiry is absent or past is renewed unless the session
// outlived its absolute lifetime
func (a *Auth) RefreshSession(ctx context.Context, token string, update bool) (*SignedSession, error) {
	if token == "" {
		return nil, ErrSessionInvalid
	}

	claims, err := a.signer.Parse(token)
	if err != nil {
		zap.L().Debug("Rejected session token", zap.Error(err))
		return nil, ErrSessionInvalid
	}

	now := a.now()

	authTime := time.Unix(claims.AuthTime, 0)
	if claims.AuthTime == 0 {
		if claims.IssuedAt == nil {
			return nil, ErrSessionInvalid
		}

		authTime = claims.IssuedAt.Time
		claims.AuthTime = authTime.Unix()
	}

	if a.cfg.SessionAbsoluteMaxAge > 0 && !now.Before(authTime.Add(a.cfg.SessionAbsoluteMaxAge)) {
		return nil, ErrSessionExpired
	}

	var renewed bool

	if update || claims.Role == "" {
		u, err := a.store.UserByID(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrSessionInvalid
			}

			return nil, fmt.Errorf("failed to look up session user, %w", err)
		}

		if update {
			renewed = claims.Role != u.Role || claims.Email != u.Email || claims.Name != u.Name

			claims.Role = u.Role
			claims.Email = u.Email
			claims.Name = u.Name
		} else {
			claims.Role = u.Role
			renewed = true
		}
	}

	if claims.ExpiresAt == nil || !now.Before(claims.ExpiresAt.Time) {
		claims.ExpiresAt = jwt.NewNumericDate(a.expiry(now, authTime))
		renewed = true
	}

	if !renewed {
		return &SignedSession{Token: token, Claims: claims}, nil
	}

	claims.IssuedAt = jwt.NewNumericDate(now)

	signed, err := a.signer.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token, %w", err)
	}

	return &SignedSession{Token: signed, Claims: claims, Renewed: true}, nil
}
