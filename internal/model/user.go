// Package model defines database models
package model

import "time"

// Role is the access tier of a user. The value stored on the user row is the
// source of truth, session tokens only cache it.
type Role string

const (
	RoleUser    Role = "USER"
	RoleStudent Role = "STUDENT"
	RoleTutor   Role = "TUTOR"
	RoleAdmin   Role = "ADMIN"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleStudent, RoleTutor, RoleAdmin:
		return true
	}

	return false
}

type User struct {
	ID                string     `gorm:"primaryKey;size:16" json:"id"`
	Email             string     `gorm:"uniqueIndex;not null" json:"email"`
	Name              string     `json:"name"`
	Phone             string     `json:"phone"`
	PasswordHash      *string    `json:"-"` // nil for OAuth-only accounts
	Role              Role       `gorm:"not null;default:'USER'" json:"role"`
	EmailVerified     *time.Time `json:"emailVerified"`
	IsVerified        bool       `gorm:"default:false" json:"isVerified"`
	VerificationToken *string    `json:"-"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`

	Accounts []Account `gorm:"foreignKey:UserID" json:"-"`
}
