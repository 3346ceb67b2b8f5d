package oauth

import (
	"context"
	"errors"
	"fmt"

	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

type Google struct {
	clientID string
	svc      *oauth2api.Service
}

// NewGoogle builds a verifier that checks ID tokens with Google's tokeninfo
// endpoint. Extra options are passed to the API client, tests use them to
// point it at a fake endpoint
func NewGoogle(ctx context.Context, clientID string, opts ...option.ClientOption) (*Google, error) {
	if clientID == "" {
		return nil, errors.New("no google client id provided")
	}

	opts = append([]option.ClientOption{option.WithoutAuthentication()}, opts...)

	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create google oauth2 client, %w", err)
	}

	return &Google{
		clientID: clientID,
		svc:      svc,
	}, nil
}

func (g *Google) Name() string {
	return "google"
}

func (g *Google) Verify(ctx context.Context, idToken string) (*Profile, error) {
	if idToken == "" {
		return nil, ErrInvalidToken
	}

	info, err := g.svc.Tokeninfo().IdToken(idToken).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w, %w", ErrInvalidToken, err)
	}

	// Tokens minted for another client must not sign anyone in here
	if info.Audience != g.clientID {
		return nil, fmt.Errorf("%w, audience mismatch", ErrInvalidToken)
	}

	if info.UserId == "" || info.Email == "" {
		return nil, fmt.Errorf("%w, missing subject or email", ErrInvalidToken)
	}

	if info.ExpiresIn <= 0 {
		return nil, fmt.Errorf("%w, token expired", ErrInvalidToken)
	}

	return &Profile{
		Provider:          g.Name(),
		ProviderAccountID: info.UserId,
		Email:             info.Email,
		EmailVerified:     info.VerifiedEmail,
	}, nil
}
