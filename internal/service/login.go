package service

import (
	"bitwise74/learnhub-api/internal/model"
	"bitwise74/learnhub-api/internal/store"
	"bitwise74/learnhub-api/pkg/validators"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

type LoginInput struct {
	Email    string `json:"email" validate:"required,address"`
	Password string `json:"password" validate:"required"`
	// CallbackURL is where the client wants to land after signing in
	CallbackURL string `json:"callbackUrl"`
}

type LoginResult struct {
	User *model.User
	// Session is nil when the user still has to verify the email
	Session  *SignedSession
	Redirect string
	// VerificationSent is set when a fresh verification email went out
	// instead of a session being established
	VerificationSent bool
}

// Login checks credentials and establishes a session. Unverified users never
// get a session, they get a new verification email instead
func (a *Auth) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Email = validators.NormalizeEmail(in.Email)

	if err := a.allow(ctx, "login:"+in.Email); err != nil {
		return nil, err
	}

	if err := validate(in); err != nil {
		return nil, err
	}

	u, err := a.store.UserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEmailNotFound
		}

		return nil, fmt.Errorf("failed to look up user, %w", err)
	}

	if !u.IsVerified {
		if err := a.issueVerification(ctx, u.Email); err != nil {
			return nil, err
		}

		return &LoginResult{User: u, VerificationSent: true}, nil
	}

	// OAuth-only accounts have no password to compare against
	if u.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}

	ok, err := a.argon.VerifyPasswd(in.Password, *u.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password, %w", err)
	}

	if !ok {
		return nil, ErrInvalidCredentials
	}

	sess, err := a.IssueSession(u)
	if err != nil {
		return nil, err
	}

	// Failed attempts before a good password don't count against the next sign-in
	if err := a.limiter.Reset(ctx, "login:"+in.Email); err != nil {
		zap.L().Warn("Failed to reset login attempts", zap.Error(err))
	}

	return &LoginResult{
		User:     u,
		Session:  sess,
		Redirect: SafeRedirect(in.CallbackURL, a.cfg.DefaultRedirect),
	}, nil
}

// SafeRedirect returns target when it is a same-site relative path and def
// otherwise
func SafeRedirect(target, def string) string {
	if target == "" || !strings.HasPrefix(target, "/") {
		return def
	}

	// "//host" and "/\host" are treated as absolute by browsers
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return def
	}

	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return def
	}

	return target
}
