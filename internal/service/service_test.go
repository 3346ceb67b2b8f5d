package service

import (
	"bitwise74/learnhub-api/db"
	"bitwise74/learnhub-api/internal/notify"
	"bitwise74/learnhub-api/internal/store"
	"bitwise74/learnhub-api/pkg/oauth"
	"bitwise74/learnhub-api/pkg/ratelimit"
	"bitwise74/learnhub-api/pkg/security"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testSecret   = "test-secret-that-is-long-enough-for-hs256"
	testPassword = "correct horse battery"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sentMail struct {
	Kind  string
	To    string
	Token string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (m *fakeMailer) record(kind, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail {
		return errors.New("smtp unavailable")
	}

	m.sent = append(m.sent, sentMail{Kind: kind, To: to, Token: token})
	return nil
}

func (m *fakeMailer) SendVerification(_ context.Context, to, token string) error {
	return m.record("verification", to, token)
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, token string) error {
	return m.record("reset", to, token)
}

func (m *fakeMailer) SendWelcome(_ context.Context, to, _ string) error {
	return m.record("welcome", to, "")
}

// last returns the most recent mail of kind sent to to
func (m *fakeMailer) last(kind, to string) (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Kind == kind && m.sent[i].To == to {
			return m.sent[i], true
		}
	}

	return sentMail{}, false
}

func (m *fakeMailer) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int
	for _, s := range m.sent {
		if s.Kind == kind {
			n++
		}
	}

	return n
}

type fakeVerifier struct {
	profiles map[string]*oauth.Profile
}

func (f *fakeVerifier) Name() string { return "google" }

func (f *fakeVerifier) Verify(_ context.Context, idToken string) (*oauth.Profile, error) {
	p, ok := f.profiles[idToken]
	if !ok {
		return nil, oauth.ErrInvalidToken
	}

	cp := *p
	return &cp, nil
}

type harness struct {
	auth   *Auth
	store  *store.Store
	db     *gorm.DB
	mailer *fakeMailer
	hub    *notify.Hub
	clock  *clock
	oauth  *fakeVerifier
	signer *security.SessionSigner
}

func newHarness(t *testing.T, tweak ...func(*Options)) *harness {
	t.Helper()

	conn, err := db.NewMemory()
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	limiter, err := ratelimit.NewMemory(ctx, ratelimit.Config{Max: 10, Window: time.Minute})
	require.NoError(t, err)

	h := &harness{
		store:  store.New(conn),
		db:     conn,
		mailer: &fakeMailer{},
		hub:    notify.NewHub(32),
		clock:  &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		oauth:  &fakeVerifier{profiles: map[string]*oauth.Profile{}},
		signer: security.NewSessionSigner(testSecret, "learnhub"),
	}
	t.Cleanup(func() { h.hub.Close() })

	opts := Options{
		Store: h.store,
		Argon: security.New(security.ArgonParams{
			Memory:      1024,
			Iterations:  1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		}),
		Signer:    h.signer,
		Limiter:   limiter,
		Mailer:    h.mailer,
		Publisher: h.hub,
		Providers: []oauth.Verifier{h.oauth},
		Config: Config{
			VerificationTTL:       time.Hour,
			ResetTTL:              time.Hour,
			ResendCooldown:        time.Minute,
			SessionMaxAge:         24 * time.Hour,
			SessionAbsoluteMaxAge: 7 * 24 * time.Hour,
		},
		Now: h.clock.Now,
	}

	for _, f := range tweak {
		f(&opts)
	}

	h.auth, err = New(opts)
	require.NoError(t, err)

	return h
}

func signupInput(email string) SignupInput {
	return SignupInput{
		Name:            "Ada Lovelace",
		Email:           email,
		Phone:           "+14155552671",
		Password:        testPassword,
		ConfirmPassword: testPassword,
		Terms:           true,
	}
}

// signupVerified registers email and consumes its verification token
func (h *harness) signupVerified(t *testing.T, email string) {
	t.Helper()

	_, err := h.auth.Signup(context.Background(), signupInput(email))
	require.NoError(t, err)

	m, ok := h.mailer.last("verification", email)
	require.True(t, ok)

	_, err = h.auth.Verify(context.Background(), m.Token)
	require.NoError(t, err)
}
