package app

import (
	"bitwise74/learnhub-api/config"
	"bitwise74/learnhub-api/db"
	"bitwise74/learnhub-api/internal"
	"bitwise74/learnhub-api/internal/mail"
	"bitwise74/learnhub-api/internal/notify"
	"bitwise74/learnhub-api/internal/service"
	"bitwise74/learnhub-api/internal/store"
	"bitwise74/learnhub-api/pkg/middleware"
	"bitwise74/learnhub-api/pkg/oauth"
	"bitwise74/learnhub-api/pkg/ratelimit"
	"bitwise74/learnhub-api/pkg/security"
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const eventsChannel = "learnhub:auth-events"

// NewDeps builds every dependency from the loaded config. The caller owns
// the result and must Close it
func NewDeps(ctx context.Context) (*internal.Deps, error) {
	var err error

	d := &internal.Deps{
		Production: config.Production(),
		Cookies: middleware.CookieOptions{
			Secure: config.SecureCookies(),
			MaxAge: config.SessionCookieMaxAge(),
		},
	}

	ok := false
	defer func() {
		if !ok {
			d.Close()
		}
	}()

	d.DB, err = db.New()
	if err != nil {
		return nil, err
	}
	d.Store = store.New(d.DB)

	if addr := viper.GetString("redis.addr"); addr != "" {
		d.Redis = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		})

		if err := d.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis, %w", err)
		}
	}

	authLimit := ratelimit.Config{
		Max:    viper.GetInt("ratelimit.max"),
		Window: viper.GetDuration("ratelimit.window"),
	}
	ipLimit := ratelimit.Config{
		Max:    viper.GetInt("ratelimit.ip_max"),
		Window: time.Minute,
	}

	var authLimiter ratelimit.Limiter
	if d.Redis != nil {
		d.Publisher = notify.NewRedisPublisher(d.Redis, eventsChannel)

		if authLimiter, err = ratelimit.NewRedis(d.Redis, authLimit, "ratelimit:auth:"); err != nil {
			return nil, err
		}

		if d.IPLimiter, err = ratelimit.NewRedis(d.Redis, ipLimit, "ratelimit:ip:"); err != nil {
			return nil, err
		}
	} else {
		hub := notify.NewHub(64)
		d.Publisher = hub
		go logEvents(hub)

		if authLimiter, err = ratelimit.NewMemory(ctx, authLimit); err != nil {
			return nil, err
		}

		if d.IPLimiter, err = ratelimit.NewBucket(ctx, ipLimit); err != nil {
			return nil, err
		}
	}

	var mailer service.Mailer = &mail.Log{BaseURL: config.BaseURL()}
	if viper.GetBool("mail.enabled") {
		mailer = mail.NewSMTP(mail.Config{
			Host:            viper.GetString("mail.host"),
			Port:            viper.GetInt("mail.port"),
			Username:        viper.GetString("mail.username"),
			Password:        viper.GetString("mail.password"),
			Sender:          viper.GetString("mail.sender"),
			BaseURL:         config.BaseURL(),
			VerificationTTL: viper.GetDuration("tokens.verification_ttl"),
			ResetTTL:        viper.GetDuration("tokens.reset_ttl"),
		})
	} else {
		zap.L().Warn("Mail is disabled, verification and reset links will only be logged")
	}

	var providers []oauth.Verifier
	if viper.GetBool("oauth.google.enabled") {
		g, err := oauth.NewGoogle(ctx, viper.GetString("oauth.google.client_id"))
		if err != nil {
			return nil, err
		}

		providers = append(providers, g)
	}

	if viper.GetBool("turnstile.enabled") {
		d.Turnstile = &middleware.TurnstileOptions{Secret: viper.GetString("turnstile.secret_token")}
	}

	d.Auth, err = service.New(service.Options{
		Store: d.Store,
		Argon: security.New(security.ArgonParams{
			Memory:      viper.GetUint32("security.argon.memory"),
			Iterations:  viper.GetUint32("security.argon.iterations"),
			Parallelism: uint8(viper.GetUint("security.argon.parallelism")),
			SaltLength:  viper.GetUint32("security.argon.salt_length"),
			KeyLength:   viper.GetUint32("security.argon.key_length"),
		}),
		Signer:    security.NewSessionSigner(viper.GetString("jwt.secret"), viper.GetString("jwt.issuer")),
		Limiter:   authLimiter,
		Mailer:    mailer,
		Publisher: d.Publisher,
		Providers: providers,
		Config: service.Config{
			VerificationTTL:       viper.GetDuration("tokens.verification_ttl"),
			ResetTTL:              viper.GetDuration("tokens.reset_ttl"),
			ResendCooldown:        viper.GetDuration("ratelimit.resend_cooldown"),
			SessionMaxAge:         viper.GetDuration("session.max_age"),
			SessionAbsoluteMaxAge: viper.GetDuration("session.absolute_max_age"),
			DefaultRedirect:       viper.GetString("auth.default_redirect"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth service, %w", err)
	}

	d.Cron = cron.New()
	if _, err := service.TokenCleanup(d.Cron, viper.GetString("tokens.cleanup_schedule"), d.Store); err != nil {
		return nil, fmt.Errorf("invalid token cleanup schedule, %w", err)
	}

	ok = true
	return d, nil
}

// logEvents drains the in-process hub when nothing else subscribes to it
func logEvents(h *notify.Hub) {
	events, _ := h.Subscribe()

	for e := range events {
		zap.L().Debug("Auth event",
			zap.String("kind", string(e.Kind)),
			zap.String("userID", e.UserID),
			zap.String("eventID", e.ID),
		)
	}
}
