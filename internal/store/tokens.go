package store

import (
	"bitwise74/learnhub-api/internal/model"
	"context"
	"time"

	"gorm.io/gorm"
)

// replaceVerificationToken keeps a single live verification token per email
func replaceVerificationToken(tx *gorm.DB, vt *model.VerificationToken) error {
	if err := tx.Where("email = ?", vt.Email).Delete(model.VerificationToken{}).Error; err != nil {
		return err
	}

	if err := tx.Create(vt).Error; err != nil {
		return translate(err)
	}

	return tx.Model(model.User{}).
		Where("email = ?", vt.Email).
		Update("verification_token", vt.Token).
		Error
}

// ReplaceVerificationToken revokes every outstanding verification token of
// vt.Email and stores vt as the only valid one
func (s *Store) ReplaceVerificationToken(ctx context.Context, vt *model.VerificationToken) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceVerificationToken(tx, vt)
	})
}

func (s *Store) VerificationToken(ctx context.Context, token string) (*model.VerificationToken, error) {
	var vt model.VerificationToken
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&vt).Error; err != nil {
		return nil, translate(err)
	}

	return &vt, nil
}

// ConsumeVerificationToken deletes the token and marks its user verified in a
// single transaction. Only one of several concurrent callers can win the delete
func (s *Store) ConsumeVerificationToken(ctx context.Context, vt *model.VerificationToken, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := tx.Where("id = ? AND token = ?", vt.ID, vt.Token).Delete(model.VerificationToken{})
		if r.Error != nil {
			return r.Error
		}

		if r.RowsAffected == 0 {
			return ErrConsumed
		}

		r = tx.Model(model.User{}).
			Where("email = ?", vt.Email).
			Updates(map[string]any{
				"email_verified":     now,
				"is_verified":        true,
				"verification_token": nil,
			})
		if r.Error != nil {
			return r.Error
		}

		if r.RowsAffected == 0 {
			return ErrNotFound
		}

		return nil
	})
}

func (s *Store) ReplacePasswordResetToken(ctx context.Context, prt *model.PasswordResetToken) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", prt.Email).Delete(model.PasswordResetToken{}).Error; err != nil {
			return err
		}

		return translate(tx.Create(prt).Error)
	})
}

func (s *Store) PasswordResetToken(ctx context.Context, token string) (*model.PasswordResetToken, error) {
	var prt model.PasswordResetToken
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&prt).Error; err != nil {
		return nil, translate(err)
	}

	return &prt, nil
}

// ConsumePasswordResetToken deletes the token and stores the new password
// hash in a single transaction
func (s *Store) ConsumePasswordResetToken(ctx context.Context, prt *model.PasswordResetToken, hash string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := tx.Where("id = ? AND token = ?", prt.ID, prt.Token).Delete(model.PasswordResetToken{})
		if r.Error != nil {
			return r.Error
		}

		if r.RowsAffected == 0 {
			return ErrConsumed
		}

		r = tx.Model(model.User{}).
			Where("email = ?", prt.Email).
			Update("password_hash", hash)
		if r.Error != nil {
			return r.Error
		}

		if r.RowsAffected == 0 {
			return ErrNotFound
		}

		return nil
	})
}

// DeleteExpiredTokens removes verification and reset tokens that can no
// longer be redeemed
func (s *Store) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	var total int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := tx.Where("expires_at <= ?", now).Delete(model.VerificationToken{})
		if r.Error != nil {
			return r.Error
		}
		total += r.RowsAffected

		// Users keep a pointer to their live token, drop pointers whose token is gone
		err := tx.Model(model.User{}).
			Where("verification_token IS NOT NULL AND verification_token NOT IN (?)",
				tx.Model(model.VerificationToken{}).Select("token")).
			Update("verification_token", nil).
			Error
		if err != nil {
			return err
		}

		r = tx.Where("expires_at <= ?", now).Delete(model.PasswordResetToken{})
		if r.Error != nil {
			return r.Error
		}
		total += r.RowsAffected

		return nil
	})

	return total, err
}
