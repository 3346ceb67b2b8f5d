package security

import (
	"bitwise74/learnhub-api/internal/model"
	"bitwise74/learnhub-api/pkg/util"
	"errors"
	"time"
)

// 32 random bytes, 64 hex characters
const tokenSize = 32

type TokenOpts struct {
	Email string
	TTL   time.Duration
	Now   time.Time
}

func (o *TokenOpts) validate() error {
	if o == nil {
		return errors.New("no token options provided")
	}

	if o.Email == "" {
		return errors.New("no email provided")
	}

	if o.TTL <= 0 {
		return errors.New("no expiry provided")
	}

	return nil
}

// MakeVerificationToken mints a single-use email verification token
func MakeVerificationToken(o *TokenOpts) (*model.VerificationToken, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	token, err := util.GenerateToken(tokenSize)
	if err != nil {
		return nil, err
	}

	return &model.VerificationToken{
		Email:     o.Email,
		Token:     token,
		ExpiresAt: o.Now.Add(o.TTL),
		CreatedAt: o.Now,
	}, nil
}

// MakePasswordResetToken mints a single-use password reset token
func MakePasswordResetToken(o *TokenOpts) (*model.PasswordResetToken, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	token, err := util.GenerateToken(tokenSize)
	if err != nil {
		return nil, err
	}

	return &model.PasswordResetToken{
		Email:     o.Email,
		Token:     token,
		ExpiresAt: o.Now.Add(o.TTL),
		CreatedAt: o.Now,
	}, nil
}
