package middleware

import (
	"bitwise74/learnhub-api/internal/model"
	"bitwise74/learnhub-api/internal/service"
	"bitwise74/learnhub-api/pkg/ratelimit"
	"bitwise74/learnhub-api/pkg/security"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRefresher struct {
	sessions map[string]*service.SignedSession
	err      error
	updates  int
}

func (f *fakeRefresher) RefreshSession(_ context.Context, token string, update bool) (*service.SignedSession, error) {
	if f.err != nil {
		return nil, f.err
	}

	if update {
		f.updates++
	}

	s, ok := f.sessions[token]
	if !ok {
		return nil, service.ErrSessionInvalid
	}

	return s, nil
}

func signedSession(token, id string, role model.Role, renewed bool) *service.SignedSession {
	return &service.SignedSession{
		Token: token,
		Claims: &security.SessionClaims{
			Email: id + "@example.com",
			Role:  role,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   id,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		},
		Renewed: renewed,
	}
}

func newEngine(r SessionRefresher, o CookieOptions, extra ...gin.HandlerFunc) *gin.Engine {
	e := gin.New()
	e.Use(NewRequestIDMiddleware(), NewSessionMiddleware(r, o))

	handlers := append(extra, func(c *gin.Context) {
		s, _ := CurrentSession(c)
		c.JSON(http.StatusOK, gin.H{"userID": c.GetString("userID"), "role": s.User.Role})
	})
	e.GET("/me", handlers...)

	return e
}

func get(e *gin.Engine, cookie *http.Cookie, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}

	for k, v := range header {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	return w
}

func TestSessionMiddleware(t *testing.T) {
	r := &fakeRefresher{sessions: map[string]*service.SignedSession{
		"tok": signedSession("tok", "user1", model.RoleStudent, false),
	}}
	e := newEngine(r, CookieOptions{MaxAge: time.Hour})

	w := get(e, &http.Cookie{Name: "session_token", Value: "tok"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "user1", body["userID"])
	assert.Equal(t, "STUDENT", body["role"])

	// Not re-signed, nothing to rewrite
	assert.Empty(t, w.Header().Values("Set-Cookie"))
	assert.Zero(t, r.updates)

	get(e, &http.Cookie{Name: "session_token", Value: "tok"}, map[string]string{SessionUpdateHeader: "1"})
	assert.Equal(t, 1, r.updates)
}

func TestSessionMiddlewareRewritesRenewedCookie(t *testing.T) {
	r := &fakeRefresher{sessions: map[string]*service.SignedSession{
		"old": signedSession("new", "user1", model.RoleUser, true),
	}}
	e := newEngine(r, CookieOptions{Secure: true, MaxAge: time.Hour})

	w := get(e, &http.Cookie{Name: "__Secure-session_token", Value: "old"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	cookies := strings.Join(w.Header().Values("Set-Cookie"), "\n")
	assert.Contains(t, cookies, "__Secure-session_token=new")
	assert.Contains(t, cookies, "HttpOnly")
	assert.Contains(t, cookies, "Secure")
	assert.Contains(t, cookies, "SameSite=Lax")
	assert.Contains(t, cookies, "logged_in=1")
}

func TestSessionMiddlewareRejects(t *testing.T) {
	r := &fakeRefresher{sessions: map[string]*service.SignedSession{}}
	e := newEngine(r, CookieOptions{MaxAge: time.Hour})

	w := get(e, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(e, &http.Cookie{Name: "session_token", Value: "unknown"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, strings.Join(w.Header().Values("Set-Cookie"), "\n"), "session_token=;")

	r.err = service.ErrSessionExpired
	w = get(e, &http.Cookie{Name: "session_token", Value: "unknown"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Session expired")

	r.err = context.DeadlineExceeded
	w = get(e, &http.Cookie{Name: "session_token", Value: "unknown"}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequireRole(t *testing.T) {
	r := &fakeRefresher{sessions: map[string]*service.SignedSession{
		"user":  signedSession("user", "user1", model.RoleUser, false),
		"admin": signedSession("admin", "admin1", model.RoleAdmin, false),
	}}
	e := newEngine(r, CookieOptions{MaxAge: time.Hour}, RequireRole(model.RoleAdmin))

	w := get(e, &http.Cookie{Name: "session_token", Value: "user"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = get(e, &http.Cookie{Name: "session_token", Value: "admin"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFreshSessionMiddlewareAlwaysUpdates(t *testing.T) {
	r := &fakeRefresher{sessions: map[string]*service.SignedSession{
		"tok": signedSession("tok", "admin1", model.RoleAdmin, false),
	}}

	e := gin.New()
	e.Use(NewRequestIDMiddleware(), NewFreshSessionMiddleware(r, CookieOptions{MaxAge: time.Hour}))
	e.GET("/me", RequireRole(model.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := get(e, &http.Cookie{Name: "session_token", Value: "tok"}, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, r.updates)
}

func TestRateLimiter(t *testing.T) {
	lim, err := ratelimit.NewBucket(t.Context(), ratelimit.Config{Max: 2, Window: time.Minute})
	require.NoError(t, err)

	e := gin.New()
	e.Use(NewRequestIDMiddleware(), NewRateLimiter(lim))
	e.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	var codes []int
	for range 3 {
		w := httptest.NewRecorder()
		e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, w.Code)

		if w.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
			assert.Contains(t, w.Body.String(), "Too many requests")
		}
	}

	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestBodySizeLimiter(t *testing.T) {
	e := gin.New()
	e.Use(BodySizeLimiter(16))
	e.POST("/echo", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			if BodyTooLarge(err) {
				c.Status(http.StatusRequestEntityTooLarge)
				return
			}

			c.Status(http.StatusBadRequest)
			return
		}

		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":"b"}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":"`+strings.Repeat("b", 64)+`"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestTurnstile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "secret", r.PostForm.Get("secret"))

		json.NewEncoder(w).Encode(turnstileResponse{Success: r.PostForm.Get("response") == "human"})
	}))
	defer srv.Close()

	e := gin.New()
	e.Use(NewRequestIDMiddleware(), NewTurnstileMiddleware(TurnstileOptions{Secret: "secret", VerifyURL: srv.URL}))
	e.POST("/signup", func(c *gin.Context) { c.Status(http.StatusCreated) })

	do := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/signup", nil)
		if token != "" {
			req.Header.Set("TurnstileToken", token)
		}

		w := httptest.NewRecorder()
		e.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusBadRequest, do(""))
	assert.Equal(t, http.StatusUnauthorized, do("bot"))
	assert.Equal(t, http.StatusCreated, do("human"))
}
