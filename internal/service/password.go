package service

import (
	"bitwise74/learnhub-api/internal/notify"
	"bitwise74/learnhub-api/internal/store"
	"bitwise74/learnhub-api/pkg/security"
	"bitwise74/learnhub-api/pkg/validators"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,address"`
}

// ForgotPassword mails a single-use reset token, revoking any earlier one
func (a *Auth) ForgotPassword(ctx context.Context, in ForgotPasswordInput) error {
	in.Email = validators.NormalizeEmail(in.Email)

	if err := a.allow(ctx, "forgot:"+in.Email); err != nil {
		return err
	}

	if err := validate(in); err != nil {
		return err
	}

	u, err := a.store.UserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrEmailNotFound
		}

		return fmt.Errorf("failed to look up user, %w", err)
	}

	prt, err := security.MakePasswordResetToken(&security.TokenOpts{
		Email: u.Email,
		TTL:   a.cfg.ResetTTL,
		Now:   a.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to generate reset token, %w", err)
	}

	if err := a.store.ReplacePasswordResetToken(ctx, prt); err != nil {
		return fmt.Errorf("failed to store reset token, %w", err)
	}

	if err := a.mailer.SendPasswordReset(ctx, u.Email, prt.Token); err != nil {
		zap.L().Error("Failed to send password reset email", zap.String("userID", u.ID), zap.Error(err))
	}

	return nil
}

type ResetPasswordInput struct {
	Password        string `json:"password" validate:"required,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// ResetPassword consumes a reset token and stores the new password
func (a *Auth) ResetPassword(ctx context.Context, token string, in ResetPasswordInput) error {
	if token == "" {
		return ErrMissingToken
	}

	if err := validate(in); err != nil {
		return err
	}

	prt, err := a.store.PasswordResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTokenNotFound
		}

		return fmt.Errorf("failed to look up reset token, %w", err)
	}

	if prt.Expired(a.now()) {
		return ErrTokenExpired
	}

	u, err := a.store.UserByEmail(ctx, prt.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrEmailNotFound
		}

		return fmt.Errorf("failed to look up user, %w", err)
	}

	hash, err := a.argon.GenerateFromPassword(in.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password, %w", err)
	}

	if err := a.store.ConsumePasswordResetToken(ctx, prt, hash); err != nil {
		switch {
		case errors.Is(err, store.ErrConsumed):
			return ErrTokenNotFound
		case errors.Is(err, store.ErrNotFound):
			return ErrEmailNotFound
		}

		return fmt.Errorf("failed to consume reset token, %w", err)
	}

	a.publish(ctx, notify.UserPasswordReset, u.ID, nil)

	return nil
}
