package internal

import (
	"bitwise74/learnhub-api/internal/notify"
	"bitwise74/learnhub-api/internal/service"
	"bitwise74/learnhub-api/internal/store"
	"bitwise74/learnhub-api/pkg/middleware"
	"bitwise74/learnhub-api/pkg/ratelimit"
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

type Deps struct {
	DB        *gorm.DB
	Store     *store.Store
	Auth      *service.Auth
	Publisher notify.Publisher
	// IPLimiter throttles every /api request per client IP
	IPLimiter ratelimit.Limiter
	// Redis is nil unless redis.addr is configured
	Redis *redis.Client
	Cron  *cron.Cron

	Cookies middleware.CookieOptions
	// Turnstile is nil when bot checks are disabled
	Turnstile  *middleware.TurnstileOptions
	Production bool
}

// Close stops background jobs and releases every connection held by d
func (d *Deps) Close() error {
	var errs []error

	if d.Cron != nil {
		<-d.Cron.Stop().Done()
	}

	if d.Publisher != nil {
		errs = append(errs, d.Publisher.Close())
	}

	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}

	if d.DB != nil {
		if sqlDB, err := d.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}

	return errors.Join(errs...)
}

// Ping checks the backing services are reachable
func (d *Deps) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}

	if d.Redis != nil {
		return d.Redis.Ping(ctx).Err()
	}

	return nil
}
