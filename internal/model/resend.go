package model

import "time"

type ResendRequest struct {
	ID            int    `gorm:"primaryKey;autoIncrement"`
	Email         string `gorm:"uniqueIndex;not null"`
	LastResend    time.Time
	CooldownUntil time.Time
	Count         int // Resends sent since the account was created
}
