// Package oauth verifies identity tokens issued by external sign-in providers
package oauth

import (
	"context"
	"errors"
)

var ErrInvalidToken = errors.New("invalid identity token")

// Profile is what a provider asserts about the signed-in person
type Profile struct {
	Provider          string
	ProviderAccountID string
	Email             string
	Name              string
	// EmailVerified is true when the provider vouches for control of Email
	EmailVerified bool
}

type Verifier interface {
	// Name is the provider id used in routes, e.g. "google"
	Name() string
	Verify(ctx context.Context, idToken string) (*Profile, error)
}
