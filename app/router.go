// Package app wires the HTTP routes of the auth API
package app

import (
	"bitwise74/learnhub-api/app/auth"
	"bitwise74/learnhub-api/app/root"
	"bitwise74/learnhub-api/app/user"
	"bitwise74/learnhub-api/internal"
	"bitwise74/learnhub-api/internal/model"
	"bitwise74/learnhub-api/pkg/middleware"
	"time"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewRouter builds the engine serving every /api route
func NewRouter(d *internal.Deps) *gin.Engine {
	router := gin.New()
	store := persist.NewMemoryStore(time.Minute)

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     viper.GetStringSlice("host.cors"),
			AllowMethods:     []string{"GET", "POST", "PATCH", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "TurnstileToken", middleware.SessionUpdateHeader},
			ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader, "Retry-After"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("user_id", v))
				}

				return fields
			},
		}),
		ginzap.RecoveryWithZap(zap.L(), true),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	session := middleware.NewSessionMiddleware(d.Auth, d.Cookies)
	freshSession := middleware.NewFreshSessionMiddleware(d.Auth, d.Cookies)
	admin := middleware.RequireRole(model.RoleAdmin)
	maxBody := viper.GetInt64("host.max_body_size")
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	body := middleware.BodySizeLimiter(maxBody)

	var turnstile gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if d.Turnstile != nil {
		turnstile = middleware.NewTurnstileMiddleware(*d.Turnstile)
	}

	m := router.Group("/api", middleware.NewRateLimiter(d.IPLimiter))
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		m.HEAD("/heartbeat", func(c *gin.Context) { root.Heartbeat(c, d) })

		// GET /api/validate		-> Validates the session and returns it
		m.GET("/validate", session, root.Validate)
	}

	a := m.Group("/auth", body)
	{
		// POST /api/auth/signup		-> Registers a new user and sends a verification email
		a.POST("/signup", turnstile, func(c *gin.Context) { auth.Signup(c, d) })

		// POST /api/auth/verify?token=		-> Verifies a user's email
		a.POST("/verify", func(c *gin.Context) { auth.Verify(c, d) })

		// POST /api/auth/login			-> Logs in a user and sets the session cookie
		a.POST("/login", func(c *gin.Context) { auth.Login(c, d) })

		// POST /api/auth/resend		-> Sends a new verification email
		a.POST("/resend", turnstile, func(c *gin.Context) { auth.Resend(c, d) })

		// POST /api/auth/forgot-password	-> Sends a password reset email
		a.POST("/forgot-password", turnstile, func(c *gin.Context) { auth.ForgotPassword(c, d) })

		// POST /api/auth/reset-password?token=	-> Sets a new password
		a.POST("/reset-password", func(c *gin.Context) { auth.ResetPassword(c, d) })

		// GET /api/auth/session		-> Returns the current session
		a.GET("/session", func(c *gin.Context) { auth.Session(c, d) })

		// POST /api/auth/session		-> Returns the current session after re-reading the user
		a.POST("/session", func(c *gin.Context) { auth.Session(c, d) })

		// POST /api/auth/logout		-> Clears the session cookies
		a.POST("/logout", func(c *gin.Context) { auth.Logout(c, d) })

		// GET /api/auth/providers		-> Lists the enabled sign-in providers
		a.GET("/providers", cacheFor(store, 60), func(c *gin.Context) { auth.Providers(c, d) })

		// POST /api/auth/oauth/:provider	-> Signs in with a provider identity token
		a.POST("/oauth/:provider", func(c *gin.Context) { auth.OAuth(c, d) })
	}

	u := m.Group("/users")
	{
		// GET /api/users/me		-> Returns the profile of the signed-in user
		u.GET("/me", session, func(c *gin.Context) { user.Me(c, d) })

		// PATCH /api/users/:id/role	-> Changes a user's role
		u.PATCH("/:id/role", freshSession, admin, body, func(c *gin.Context) { user.ChangeRole(c, d) })
	}

	return router
}

func cacheFor(store persist.CacheStore, sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(store, time.Second*time.Duration(sec))
}
