package service

import (
	"bitwise74/learnhub-api/internal/model"
	"bitwise74/learnhub-api/internal/notify"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupCreatesUnverifiedUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	events, stop := h.hub.Subscribe()
	defer stop()

	u, err := h.auth.Signup(ctx, signupInput("A@Example.com "))
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)
	assert.Len(t, u.ID, 16)

	stored, err := h.store.UserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, stored.IsVerified)
	assert.Nil(t, stored.EmailVerified)
	assert.Equal(t, model.RoleUser, stored.Role)
	require.NotNil(t, stored.VerificationToken)
	assert.NotEmpty(t, *stored.VerificationToken)
	require.NotNil(t, stored.PasswordHash)
	assert.NotEqual(t, testPassword, *stored.PasswordHash)

	m, ok := h.mailer.last("verification", "a@example.com")
	require.True(t, ok)
	assert.Equal(t, *stored.VerificationToken, m.Token)

	select {
	case e := <-events:
		assert.Equal(t, notify.UserRegistered, e.Kind)
		assert.Equal(t, u.ID, e.UserID)
	case <-time.After(time.Second):
		t.Fatal("no registration event")
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.auth.Signup(ctx, signupInput("a@example.com"))
	require.NoError(t, err)

	_, err = h.auth.Signup(ctx, signupInput("A@EXAMPLE.COM"))
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	var n int64
	require.NoError(t, h.db.Model(model.User{}).Where("email = ?", "a@example.com").Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestSignupValidation(t *testing.T) {
	h := newHarness(t)

	in := signupInput("not-an-email")
	in.ConfirmPassword = "something else entirely"
	in.Terms = false
	in.Phone = "12"

	_, err := h.auth.Signup(context.Background(), in)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Message
	}

	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "phone")
	assert.Equal(t, "passwords do not match", fields["confirmPassword"])
	assert.Equal(t, "terms must be accepted", fields["terms"])
	assert.Zero(t, h.mailer.count("verification"))
}

func TestSignupMailFailureKeepsUser(t *testing.T) {
	h := newHarness(t)
	h.mailer.fail = true

	_, err := h.auth.Signup(context.Background(), signupInput("a@example.com"))
	require.NoError(t, err)

	_, err = h.store.UserByEmail(context.Background(), "a@example.com")
	assert.NoError(t, err)
}

func TestVerify(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.auth.Signup(ctx, signupInput("a@example.com"))
	require.NoError(t, err)

	m, _ := h.mailer.last("verification", "a@example.com")

	u, err := h.auth.Verify(ctx, m.Token)
	require.NoError(t, err)
	assert.True(t, u.IsVerified)

	stored, err := h.store.UserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)
	require.NotNil(t, stored.EmailVerified)
	assert.True(t, stored.EmailVerified.Equal(h.clock.Now()))
	assert.Nil(t, stored.VerificationToken)

	_, ok := h.mailer.last("welcome", "a@example.com")
	assert.True(t, ok)

	// Single use
	_, err = h.auth.Verify(ctx, m.Token)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestVerifyErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.auth.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = h.auth.Verify(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestVerifyExpiryBoundary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.auth.Signup(ctx, signupInput("a@example.com"))
	require.NoError(t, err)

	_, err = h.auth.Signup(ctx, signupInput("b@example.com"))
	require.NoError(t, err)

	a, _ := h.mailer.last("verification", "a@example.com")
	b, _ := h.mailer.last("verification", "b@example.com")

	// One tick before expiry still works
	h.clock.Advance(time.Hour - time.Second)
	_, err = h.auth.Verify(ctx, a.Token)
	require.NoError(t, err)

	// Expiry equal to now counts as expired
	h.clock.Advance(time.Second)
	_, err = h.auth.Verify(ctx, b.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// Terminal, a later attempt doesn't recover
	_, err = h.auth.Verify(ctx, b.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestResendVerification(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.auth.Signup(ctx, signupInput("a@example.com"))
	require.NoError(t, err)

	first, _ := h.mailer.last("verification", "a@example.com")

	require.NoError(t, h.auth.ResendVerification(ctx, ResendInput{Email: "a@example.com"}))

	second, _ := h.mailer.last("verification", "a@example.com")
	assert.NotEqual(t, first.Token, second.Token)

	// The earlier token was revoked by the resend
	_, err = h.auth.Verify(ctx, first.Token)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	err = h.auth.ResendVerification(ctx, ResendInput{Email: "a@example.com"})
	var rlerr *RateLimitError
	require.ErrorAs(t, err, &rlerr)
	assert.Equal(t, time.Minute, rlerr.RetryAfter)

	h.clock.Advance(time.Minute)
	require.NoError(t, h.auth.ResendVerification(ctx, ResendInput{Email: "a@example.com"}))
}

func TestResendVerificationErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.auth.ResendVerification(ctx, ResendInput{Email: "ghost@example.com"})
	assert.ErrorIs(t, err, ErrEmailNotFound)

	h.signupVerified(t, "a@example.com")

	err = h.auth.ResendVerification(ctx, ResendInput{Email: "a@example.com"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Fields[0].Field)
}
