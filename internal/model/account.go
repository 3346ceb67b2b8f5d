package model

import "time"

// Account links a user to an external sign-in provider
type Account struct {
	ID                uint   `gorm:"primaryKey;autoIncrement"`
	UserID            string `gorm:"index;not null"`
	Provider          string `gorm:"uniqueIndex:idx_provider_account;not null"`
	ProviderAccountID string `gorm:"uniqueIndex:idx_provider_account;not null"`
	CreatedAt         time.Time
}
