package service

import (
	"bitwise74/learnhub-api/internal/model"
	"bitwise74/learnhub-api/internal/notify"
	"bitwise74/learnhub-api/internal/store"
	"bitwise74/learnhub-api/pkg/oauth"
	"bitwise74/learnhub-api/pkg/ratelimit"
	"bitwise74/learnhub-api/pkg/security"
	"bitwise74/learnhub-api/pkg/validators"
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

const idCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Mailer delivers the emails of the auth flow
type Mailer interface {
	SendVerification(ctx context.Context, to, token string) error
	SendPasswordReset(ctx context.Context, to, token string) error
	SendWelcome(ctx context.Context, to, name string) error
}

type Config struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	ResendCooldown  time.Duration

	// SessionMaxAge is the sliding lifetime of a session token
	SessionMaxAge time.Duration
	// SessionAbsoluteMaxAge caps a session measured from the original
	// sign-in, no matter how often it was renewed. Zero disables the cap
	SessionAbsoluteMaxAge time.Duration

	DefaultRedirect string
}

type Options struct {
	Store     *store.Store
	Argon     *security.ArgonHash
	Signer    *security.SessionSigner
	Limiter   ratelimit.Limiter
	Mailer    Mailer
	Publisher notify.Publisher
	Providers []oauth.Verifier
	Config    Config

	// Now defaults to time.Now
	Now func() time.Time
}

// Auth runs the signup, verification, login, password reset and session
// flows against the credential store
type Auth struct {
	store     *store.Store
	argon     *security.ArgonHash
	signer    *security.SessionSigner
	limiter   ratelimit.Limiter
	mailer    Mailer
	pub       notify.Publisher
	providers map[string]oauth.Verifier
	cfg       Config
	now       func() time.Time
}

func New(o Options) (*Auth, error) {
	switch {
	case o.Store == nil:
		return nil, errors.New("no store provided")
	case o.Argon == nil:
		return nil, errors.New("no password hasher provided")
	case o.Signer == nil:
		return nil, errors.New("no session signer provided")
	case o.Limiter == nil:
		return nil, errors.New("no rate limiter provided")
	case o.Mailer == nil:
		return nil, errors.New("no mailer provided")
	case o.Publisher == nil:
		return nil, errors.New("no publisher provided")
	}

	if o.Config.VerificationTTL <= 0 || o.Config.ResetTTL <= 0 {
		return nil, errors.New("token lifetimes must be bigger than 0")
	}

	if o.Config.SessionMaxAge <= 0 {
		return nil, errors.New("session max age must be bigger than 0")
	}

	if o.Config.DefaultRedirect == "" {
		o.Config.DefaultRedirect = "/dashboard"
	}

	if o.Now == nil {
		o.Now = time.Now
	}

	providers := make(map[string]oauth.Verifier, len(o.Providers))
	for _, p := range o.Providers {
		providers[p.Name()] = p
	}

	return &Auth{
		store:     o.Store,
		argon:     o.Argon,
		signer:    o.Signer,
		limiter:   o.Limiter,
		mailer:    o.Mailer,
		pub:       o.Publisher,
		providers: providers,
		cfg:       o.Config,
		now:       o.Now,
	}, nil
}

// Providers lists the enabled OAuth provider ids
func (a *Auth) Providers() []string {
	names := make([]string, 0, len(a.providers))
	for name := range a.providers {
		names = append(names, name)
	}

	return names
}

func (a *Auth) allow(ctx context.Context, key string) error {
	res, err := a.limiter.Allow(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check rate limit, %w", err)
	}

	if !res.Allowed {
		return &RateLimitError{RetryAfter: res.RetryAfter}
	}

	return nil
}

func (a *Auth) publish(ctx context.Context, kind notify.Kind, userID string, data map[string]any) {
	if err := a.pub.Publish(ctx, notify.NewEvent(kind, userID, data)); err != nil {
		zap.L().Warn("Failed to publish event", zap.String("kind", string(kind)), zap.Error(err))
	}
}

// issueVerification replaces the user's verification token and mails it.
// Delivery failures are logged, the token stays valid
func (a *Auth) issueVerification(ctx context.Context, email string) error {
	vt, err := security.MakeVerificationToken(&security.TokenOpts{
		Email: email,
		TTL:   a.cfg.VerificationTTL,
		Now:   a.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to generate verification token, %w", err)
	}

	if err := a.store.ReplaceVerificationToken(ctx, vt); err != nil {
		return fmt.Errorf("failed to store verification token, %w", err)
	}

	if err := a.mailer.SendVerification(ctx, email, vt.Token); err != nil {
		zap.L().Error("Failed to send verification email", zap.Error(err))
	}

	return nil
}

type SignupInput struct {
	Name            string `json:"name" validate:"required,min=2,max=64"`
	Email           string `json:"email" validate:"required,address"`
	Phone           string `json:"phone" validate:"required,e164"`
	Password        string `json:"password" validate:"required,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Terms           bool   `json:"terms" validate:"required"`
}

// Signup registers an unverified user and mails the first verification token
func (a *Auth) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	in.Email = validators.NormalizeEmail(in.Email)

	if err := validate(in); err != nil {
		return nil, err
	}

	taken, err := a.store.EmailTaken(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check if user is registered, %w", err)
	}

	if taken {
		return nil, ErrDuplicateEmail
	}

	hash, err := a.argon.GenerateFromPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password, %w", err)
	}

	userID, err := gonanoid.Generate(idCharset, 16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate user ID, %w", err)
	}

	now := a.now()

	vt, err := security.MakeVerificationToken(&security.TokenOpts{
		Email: in.Email,
		TTL:   a.cfg.VerificationTTL,
		Now:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token, %w", err)
	}

	u := &model.User{
		ID:           userID,
		Email:        in.Email,
		Name:         in.Name,
		Phone:        in.Phone,
		PasswordHash: &hash,
		Role:         model.RoleUser,
	}

	if err := a.store.CreateUser(ctx, u, vt); err != nil {
		// Lost a race with a concurrent signup for the same email
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}

		return nil, fmt.Errorf("failed to create user, %w", err)
	}

	if err := a.mailer.SendVerification(ctx, u.Email, vt.Token); err != nil {
		zap.L().Error("Failed to send verification email", zap.String("userID", u.ID), zap.Error(err))
	}

	a.publish(ctx, notify.UserRegistered, u.ID, map[string]any{"provider": "credentials"})

	return u, nil
}

// Verify consumes a verification token and marks its user verified
func (a *Auth) Verify(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	vt, err := a.store.VerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTokenNotFound
		}

		return nil, fmt.Errorf("failed to look up verification token, %w", err)
	}

	now := a.now()
	if vt.Expired(now) {
		return nil, ErrTokenExpired
	}

	u, err := a.store.UserByEmail(ctx, vt.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEmailNotFound
		}

		return nil, fmt.Errorf("failed to look up user, %w", err)
	}

	if err := a.store.ConsumeVerificationToken(ctx, vt, now); err != nil {
		switch {
		case errors.Is(err, store.ErrConsumed):
			return nil, ErrTokenNotFound
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrEmailNotFound
		}

		return nil, fmt.Errorf("failed to consume verification token, %w", err)
	}

	u.IsVerified = true
	u.EmailVerified = &now
	u.VerificationToken = nil

	if err := a.mailer.SendWelcome(ctx, u.Email, u.Name); err != nil {
		zap.L().Error("Failed to send welcome email", zap.String("userID", u.ID), zap.Error(err))
	}

	a.publish(ctx, notify.UserVerified, u.ID, nil)

	return u, nil
}

type ResendInput struct {
	Email string `json:"email" validate:"required,address"`
}

// ResendVerification mails a fresh verification token to an unverified user.
// Every resend revokes the previous token
func (a *Auth) ResendVerification(ctx context.Context, in ResendInput) error {
	in.Email = validators.NormalizeEmail(in.Email)

	if err := a.allow(ctx, "resend:"+in.Email); err != nil {
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

	if u.IsVerified {
		return newValidationError("email", "email is already verified")
	}

	now := a.now()

	until, ok, err := a.store.TouchResend(ctx, u.Email, now, a.cfg.ResendCooldown)
	if err != nil {
		return fmt.Errorf("failed to record resend, %w", err)
	}

	if !ok {
		return &RateLimitError{RetryAfter: until.Sub(now)}
	}

	return a.issueVerification(ctx, u.Email)
}
