package app

import (
	"bitwise74/learnhub-api/db"
	"bitwise74/learnhub-api/internal"
	"bitwise74/learnhub-api/internal/model"
	"bitwise74/learnhub-api/internal/notify"
	"bitwise74/learnhub-api/internal/service"
	"bitwise74/learnhub-api/internal/store"
	"bitwise74/learnhub-api/pkg/middleware"
	"bitwise74/learnhub-api/pkg/ratelimit"
	"bitwise74/learnhub-api/pkg/security"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const password = "correct horse battery"

type captureMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *captureMailer) put(key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens[key] = token
	return nil
}

func (m *captureMailer) get(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.tokens[key]
}

func (m *captureMailer) SendVerification(_ context.Context, to, token string) error {
	return m.put("verify:"+to, token)
}

func (m *captureMailer) SendPasswordReset(_ context.Context, to, token string) error {
	return m.put("reset:"+to, token)
}

func (m *captureMailer) SendWelcome(_ context.Context, to, _ string) error {
	return m.put("welcome:"+to, "1")
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = c.t.Add(d)
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	deps   *internal.Deps
	mailer *captureMailer
	clock  *testClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.NewMemory()
	require.NoError(t, err)

	authLimiter, err := ratelimit.NewMemory(t.Context(), ratelimit.Config{Max: 20, Window: time.Minute})
	require.NoError(t, err)

	ipLimiter, err := ratelimit.NewBucket(t.Context(), ratelimit.Config{Max: 1000, Window: time.Minute})
	require.NoError(t, err)

	mailer := &captureMailer{tokens: map[string]string{}}
	hub := notify.NewHub(16)
	clock := &testClock{t: time.Now()}

	d := &internal.Deps{
		DB:        conn,
		Store:     store.New(conn),
		Publisher: hub,
		IPLimiter: ipLimiter,
		Cookies:   middleware.CookieOptions{MaxAge: 24 * time.Hour},
	}
	t.Cleanup(func() { d.Close() })

	d.Auth, err = service.New(service.Options{
		Store: d.Store,
		Argon: security.New(security.ArgonParams{
			Memory:      1024,
			Iterations:  1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		}),
		Signer:    security.NewSessionSigner("router-test-secret-0123456789abcdef", "learnhub"),
		Limiter:   authLimiter,
		Mailer:    mailer,
		Publisher: hub,
		Config: service.Config{
			VerificationTTL:       time.Hour,
			ResetTTL:              time.Hour,
			ResendCooldown:        time.Minute,
			SessionMaxAge:         time.Hour,
			SessionAbsoluteMaxAge: 24 * time.Hour,
		},
		Now: clock.now,
	})
	require.NoError(t, err)

	return &testServer{t: t, router: NewRouter(d), deps: d, mailer: mailer, clock: clock}
}

func (s *testServer) do(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	s.t.Helper()

	var r *strings.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = strings.NewReader(string(b))
	} else {
		r = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range w.Result().Cookies() {
		if c.Name == "session_token" && c.Value != "" {
			return c
		}
	}

	t.Fatal("no session cookie set")
	return nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	return body
}

func signupBody(email string) gin.H {
	return gin.H{
		"name":            "Ada Lovelace",
		"email":           email,
		"phone":           "+14155552671",
		"password":        password,
		"confirmPassword": password,
		"terms":           true,
	}
}

// register signs up email, verifies it and logs in
func (s *testServer) register(email string) *http.Cookie {
	s.t.Helper()

	w := s.do(http.MethodPost, "/api/auth/signup", signupBody(email))
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/auth/verify?token="+s.mailer.get("verify:"+email), nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/auth/login", gin.H{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	return sessionCookie(s.t, w)
}

func TestSignupVerifyLogin(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/auth/signup", signupBody("a@x.com"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Confirmation email sent!", decode(t, w)["success"])

	// Unverified login sends a new email instead of a session
	w = s.do(http.MethodPost, "/api/auth/login", gin.H{"email": "a@x.com", "password": password})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["verified"])
	assert.Empty(t, w.Result().Cookies())

	w = s.do(http.MethodPost, "/api/auth/verify?token="+s.mailer.get("verify:a@x.com"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", gin.H{"email": "a@x.com", "password": password, "callbackUrl": "/courses"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "/courses", body["redirect"])

	sess := body["session"].(map[string]any)
	assert.Equal(t, "USER", sess["user"].(map[string]any)["role"])

	cookie := sessionCookie(t, w)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	w = s.do(http.MethodGet, "/api/users/me", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@x.com", decode(t, w)["email"])
	assert.NotContains(t, w.Body.String(), "argon2id")

	w = s.do(http.MethodGet, "/api/validate", nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	s.register("a@example.com")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"duplicate signup", http.MethodPost, "/api/auth/signup", signupBody("a@example.com"), http.StatusConflict},
		{"invalid signup", http.MethodPost, "/api/auth/signup", gin.H{"email": "nope"}, http.StatusBadRequest},
		{"unknown token", http.MethodPost, "/api/auth/verify?token=abc", nil, http.StatusNotFound},
		{"missing verify token", http.MethodPost, "/api/auth/verify", nil, http.StatusBadRequest},
		{"wrong password", http.MethodPost, "/api/auth/login", gin.H{"email": "a@example.com", "password": "wrong one"}, http.StatusUnauthorized},
		{"unknown email", http.MethodPost, "/api/auth/login", gin.H{"email": "ghost@example.com", "password": "whatever"}, http.StatusNotFound},
		{"missing reset token", http.MethodPost, "/api/auth/reset-password", gin.H{"password": password, "confirmPassword": password}, http.StatusBadRequest},
		{"no session", http.MethodGet, "/api/users/me", nil, http.StatusUnauthorized},
		{"unknown provider", http.MethodPost, "/api/auth/oauth/github", gin.H{"idToken": "x"}, http.StatusNotFound},
		{"bad body", http.MethodPost, "/api/auth/login", "not an object", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, decode(t, w)["requestID"])
		})
	}
}

func TestValidationErrorListsFields(t *testing.T) {
	s := newTestServer(t)

	body := signupBody("a@example.com")
	body["confirmPassword"] = "something else"

	w := s.do(http.MethodPost, "/api/auth/signup", body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	fields := decode(t, w)["fields"].([]any)
	require.Len(t, fields, 1)
	assert.Equal(t, "confirmPassword", fields[0].(map[string]any)["field"])
}

func TestPasswordReset(t *testing.T) {
	s := newTestServer(t)
	s.register("a@x.com")

	w := s.do(http.MethodPost, "/api/auth/forgot-password", gin.H{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, w.Code)

	const newPassword = "a brand new password"
	token := s.mailer.get("reset:a@x.com")

	w = s.do(http.MethodPost, "/api/auth/reset-password?token="+token, gin.H{"password": newPassword, "confirmPassword": newPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/auth/login", gin.H{"email": "a@x.com", "password": newPassword})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", gin.H{"email": "a@x.com", "password": password})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleChangePropagates(t *testing.T) {
	s := newTestServer(t)

	student := s.register("student@example.com")
	adminCookie := s.register("admin@example.com")

	admin, err := s.deps.Store.UserByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	require.NoError(t, s.deps.Store.UpdateRole(context.Background(), admin.ID, model.RoleAdmin))

	// The admin's own cookie still says USER until it is updated
	w := s.do(http.MethodPost, "/api/auth/session", nil, adminCookie)
	require.Equal(t, http.StatusOK, w.Code)
	adminCookie = sessionCookie(t, w)

	target, err := s.deps.Store.UserByEmail(context.Background(), "student@example.com")
	require.NoError(t, err)

	// Students can't promote anyone
	w = s.do(http.MethodPatch, "/api/users/"+target.ID+"/role", gin.H{"role": "TUTOR"}, student)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPatch, "/api/users/"+target.ID+"/role", gin.H{"role": "TUTOR"}, adminCookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "TUTOR", decode(t, w)["role"])

	w = s.do(http.MethodPatch, "/api/users/"+target.ID+"/role", gin.H{"role": "KING"}, adminCookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Plain reads keep the cached role, an update picks up the new one
	w = s.do(http.MethodGet, "/api/auth/session", nil, student)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "USER", decode(t, w)["user"].(map[string]any)["role"])

	w = s.do(http.MethodPost, "/api/auth/session", nil, student)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "TUTOR", decode(t, w)["user"].(map[string]any)["role"])

	// A demoted admin loses the role endpoint even with a cookie that still says ADMIN
	require.NoError(t, s.deps.Store.UpdateRole(context.Background(), admin.ID, model.RoleUser))

	w = s.do(http.MethodPatch, "/api/users/"+target.ID+"/role", gin.H{"role": "STUDENT"}, adminCookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRoleChangeBodyTooLarge(t *testing.T) {
	s := newTestServer(t)

	adminCookie := s.register("admin@example.com")
	admin, err := s.deps.Store.UserByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	require.NoError(t, s.deps.Store.UpdateRole(context.Background(), admin.ID, model.RoleAdmin))

	body := `{"role":"ADMIN","padding":"` + strings.Repeat("x", 2<<20) + `"}`

	// Unknown length, so the limit is hit while the handler decodes the body
	req := httptest.NewRequest(http.MethodPatch, "/api/users/"+admin.ID+"/role", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	req.AddCookie(adminCookie)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "Request body size exceeds limit")
}

func TestSessionRenewsAfterExpiry(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/auth/signup", signupBody("a@example.com"))
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.do(http.MethodPost, "/api/auth/verify?token="+s.mailer.get("verify:a@example.com"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", gin.H{"email": "a@example.com", "password": password})
	require.Equal(t, http.StatusOK, w.Code)

	// The cookie lives until the absolute ceiling, past the token's own expiry
	cookie := sessionCookie(t, w)
	assert.Equal(t, int((24 * time.Hour).Seconds()), cookie.MaxAge)

	s.clock.advance(2 * time.Hour)

	w = s.do(http.MethodGet, "/api/auth/session", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	renewed := sessionCookie(t, w)
	assert.NotEqual(t, cookie.Value, renewed.Value)
	assert.Equal(t, "a@example.com", decode(t, w)["user"].(map[string]any)["email"])

	// Past the ceiling no renewal is possible
	s.clock.advance(23 * time.Hour)

	w = s.do(http.MethodGet, "/api/auth/session", nil, renewed)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutAndProviders(t *testing.T) {
	s := newTestServer(t)
	cookie := s.register("a@example.com")

	w := s.do(http.MethodPost, "/api/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "session_token" && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)

	w = s.do(http.MethodGet, "/api/auth/providers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"credentials"}, decode(t, w)["providers"])
}

func TestHeartbeat(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodHead, "/api/heartbeat", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
