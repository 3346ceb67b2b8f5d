package security

import (
	"bitwise74/learnhub-api/internal/model"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrSessionInvalid = errors.New("session token invalid")

// SessionClaims is the payload of the session cookie. Role is a cache of
// the user row and may be empty on tokens minted before roles existed
type SessionClaims struct {
	Email    string     `json:"email"`
	Name     string     `json:"name,omitempty"`
	Role     model.Role `json:"role,omitempty"`
	AuthTime int64      `json:"auth_time"`
	jwt.RegisteredClaims
}

type SessionSigner struct {
	secret []byte
	issuer string
}

func NewSessionSigner(secret, issuer string) *SessionSigner {
	return &SessionSigner{
		secret: []byte(secret),
		issuer: issuer,
	}
}

func (s *SessionSigner) Sign(c *SessionClaims) (string, error) {
	c.Issuer = s.issuer

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return t.SignedString(s.secret)
}

// Parse checks the signature and issuer only. Expiry is owned by the
// session refresh chain, which renews or rejects it
func (s *SessionSigner) Parse(tokenStr string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w, %w", ErrSessionInvalid, err)
	}

	if !token.Valid || claims.Subject == "" || claims.Issuer != s.issuer {
		return nil, ErrSessionInvalid
	}

	return claims, nil
}
