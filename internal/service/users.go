package service

import (
	"bitwise74/learnhub-api/internal/model"
	"bitwise74/learnhub-api/internal/notify"
	"bitwise74/learnhub-api/internal/store"
	"context"
	"errors"
	"fmt"
)

func (a *Auth) User(ctx context.Context, id string) (*model.User, error) {
	u, err := a.store.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}

		return nil, fmt.Errorf("failed to look up user, %w", err)
	}

	return u, nil
}

type ChangeRoleInput struct {
	Role model.Role `json:"role" validate:"required,oneof=USER STUDENT TUTOR ADMIN"`
}

// ChangeRole stores a new role for the user. Open sessions of that user pick
// it up on their next update
func (a *Auth) ChangeRole(ctx context.Context, actorID, userID string, in ChangeRoleInput) (*model.User, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	u, err := a.User(ctx, userID)
	if err != nil {
		return nil, err
	}

	if u.Role == in.Role {
		return u, nil
	}

	if err := a.store.UpdateRole(ctx, u.ID, in.Role); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}

		return nil, fmt.Errorf("failed to update role, %w", err)
	}

	from := u.Role
	u.Role = in.Role

	a.publish(ctx, notify.UserRoleChanged, u.ID, map[string]any{
		"from": from,
		"to":   in.Role,
		"by":   actorID,
	})

	return u, nil
}
