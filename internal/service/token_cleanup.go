package service

import (
	"bitwise74/learnhub-api/internal/store"
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TokenCleanup schedules the periodic removal of verification and reset
// tokens that can no longer be redeemed
func TokenCleanup(c *cron.Cron, schedule string, s *store.Store) (cron.EntryID, error) {
	id, err := c.AddFunc(schedule, func() {
		CleanupTokens(context.Background(), s, time.Now())
	})
	if err != nil {
		return 0, err
	}

	zap.L().Debug("Token cleanup attached", zap.String("schedule", schedule))

	return id, nil
}

func CleanupTokens(ctx context.Context, s *store.Store, now time.Time) int64 {
	n, err := s.DeleteExpiredTokens(ctx, now)
	if err != nil {
		zap.L().Error("Failed to cleanup expired tokens", zap.Error(err))
		return 0
	}

	if n > 0 {
		zap.L().Debug("Cleaned up expired tokens", zap.Int64("count", n))
	}

	return n
}
