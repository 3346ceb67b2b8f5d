package service

import (
	"bitwise74/learnhub-api/internal/model"
	"bitwise74/learnhub-api/internal/notify"
	"bitwise74/learnhub-api/internal/store"
	"bitwise74/learnhub-api/pkg/oauth"
	"bitwise74/learnhub-api/pkg/validators"
	"context"
	"errors"
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

// OAuthSignIn signs in with a provider identity token. Unknown emails get an
// implicitly verified account without a password. An existing credentials
// account is linked only when the provider vouches for the email
func (a *Auth) OAuthSignIn(ctx context.Context, provider, idToken, callbackURL string) (*LoginResult, error) {
	v, ok := a.providers[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}

	p, err := v.Verify(ctx, idToken)
	if err != nil {
		zap.L().Debug("Provider rejected identity token", zap.String("provider", provider), zap.Error(err))
		return nil, ErrInvalidCredentials
	}

	p.Email = validators.NormalizeEmail(p.Email)
	if validators.EmailValidator(p.Email) != nil {
		return nil, ErrInvalidCredentials
	}

	u, err := a.oauthUser(ctx, p)
	if err != nil {
		return nil, err
	}

	sess, err := a.IssueSession(u)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		User:     u,
		Session:  sess,
		Redirect: SafeRedirect(callbackURL, a.cfg.DefaultRedirect),
	}, nil
}

func (a *Auth) oauthUser(ctx context.Context, p *oauth.Profile) (*model.User, error) {
	acc, err := a.store.AccountByProvider(ctx, p.Provider, p.ProviderAccountID)
	switch {
	case err == nil:
		u, err := a.store.UserByID(ctx, acc.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up linked user, %w", err)
		}

		return u, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to look up provider account, %w", err)
	}

	acc = &model.Account{
		Provider:          p.Provider,
		ProviderAccountID: p.ProviderAccountID,
	}

	u, err := a.store.UserByEmail(ctx, p.Email)
	switch {
	case err == nil:
		if !p.EmailVerified {
			return nil, ErrInvalidCredentials
		}

		if err := a.store.LinkAccount(ctx, u, acc, a.now()); err != nil {
			return nil, fmt.Errorf("failed to link provider account, %w", err)
		}

		return u, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to look up user, %w", err)
	}

	userID, err := gonanoid.Generate(idCharset, 16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate user ID, %w", err)
	}

	name := p.Name
	if name == "" {
		name, _, _ = strings.Cut(p.Email, "@")
	}

	now := a.now()
	u = &model.User{
		ID:            userID,
		Email:         p.Email,
		Name:          name,
		Role:          model.RoleUser,
		EmailVerified: &now,
		IsVerified:    true,
	}

	if err := a.store.CreateOAuthUser(ctx, u, acc); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}

		return nil, fmt.Errorf("failed to create user, %w", err)
	}

	if err := a.mailer.SendWelcome(ctx, u.Email, u.Name); err != nil {
		zap.L().Error("Failed to send welcome email", zap.String("userID", u.ID), zap.Error(err))
	}

	a.publish(ctx, notify.UserRegistered, u.ID, map[string]any{"provider": p.Provider})

	return u, nil
}
