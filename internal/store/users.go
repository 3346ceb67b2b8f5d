package store

import (
	"bitwise74/learnhub-api/internal/model"
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translate(err)
	}

	return &u, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}

	return &u, nil
}

func (s *Store) EmailTaken(ctx context.Context, email string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(model.User{}).
		Where("email = ?", email).
		Count(&n).
		Error
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// CreateUser inserts u together with its first verification token. The
// unique index on email is the final arbiter for concurrent signups
func (s *Store) CreateUser(ctx context.Context, u *model.User, vt *model.VerificationToken) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u.VerificationToken = &vt.Token

		if err := tx.Create(u).Error; err != nil {
			return translate(err)
		}

		if err := replaceVerificationToken(tx, vt); err != nil {
			return err
		}

		return nil
	})
}

func (s *Store) UpdateRole(ctx context.Context, id string, role model.Role) error {
	r := s.db.WithContext(ctx).
		Model(model.User{}).
		Where("id = ?", id).
		Update("role", role)
	if r.Error != nil {
		return r.Error
	}

	if r.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// CreateOAuthUser inserts an implicitly verified user without a password
// and links it to the provider account in one transaction
func (s *Store) CreateOAuthUser(ctx context.Context, u *model.User, acc *model.Account) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return translate(err)
		}

		acc.UserID = u.ID
		if err := tx.Create(acc).Error; err != nil {
			return translate(err)
		}

		return nil
	})
}

func (s *Store) AccountByProvider(ctx context.Context, provider, providerAccountID string) (*model.Account, error) {
	var acc model.Account
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_account_id = ?", provider, providerAccountID).
		First(&acc).
		Error
	if err != nil {
		return nil, translate(err)
	}

	return &acc, nil
}

// LinkAccount attaches a provider account to an existing user. Linking
// through a provider that vouches for the email also verifies the user
func (s *Store) LinkAccount(ctx context.Context, u *model.User, acc *model.Account, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acc.UserID = u.ID
		if err := tx.Create(acc).Error; err != nil {
			return translate(err)
		}

		if u.IsVerified {
			return nil
		}

		err := tx.Model(model.User{}).
			Where("id = ?", u.ID).
			Updates(map[string]any{
				"email_verified":     now,
				"is_verified":        true,
				"verification_token": nil,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to mark linked user verified, %w", err)
		}

		if err := tx.Where("email = ?", u.Email).Delete(model.VerificationToken{}).Error; err != nil {
			return err
		}

		u.IsVerified = true
		u.EmailVerified = &now
		u.VerificationToken = nil

		return nil
	})
}
