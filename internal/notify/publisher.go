// Package notify fans auth lifecycle events out to the rest of the
// marketplace. Publishers are constructed by the process entry point and
// passed to handlers, they are never stored in package globals
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	UserRegistered    Kind = "user.registered"
	UserVerified      Kind = "user.verified"
	UserRoleChanged   Kind = "user.role_changed"
	UserPasswordReset Kind = "user.password_reset"
)

type Event struct {
	ID     string         `json:"id"`
	Kind   Kind           `json:"kind"`
	UserID string         `json:"userId"`
	Data   map[string]any `json:"data,omitempty"`
	At     time.Time      `json:"at"`
}

func NewEvent(kind Kind, userID string, data map[string]any) Event {
	return Event{
		ID:     uuid.NewString(),
		Kind:   kind,
		UserID: userID,
		Data:   data,
		At:     time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}
