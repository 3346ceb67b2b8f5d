package store

import (
	"bitwise74/learnhub-api/internal/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// TouchResend records a resend for email unless it is still cooling down.
// When it is, ok is false and until tells when the next resend is allowed
func (s *Store) TouchResend(ctx context.Context, email string, now time.Time, cooldown time.Duration) (until time.Time, ok bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rr model.ResendRequest

		err := tx.Where("email = ?", email).First(&rr).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err == nil && now.Before(rr.CooldownUntil) {
			until = rr.CooldownUntil
			return nil
		}

		rr.Email = email
		rr.LastResend = now
		rr.CooldownUntil = now.Add(cooldown)
		rr.Count++

		if err := tx.Save(&rr).Error; err != nil {
			return err
		}

		until, ok = rr.CooldownUntil, true
		return nil
	})

	return until, ok, err
}
