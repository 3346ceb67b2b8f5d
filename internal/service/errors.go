package service

import (
	"bitwise74/learnhub-api/pkg/ratelimit"
	"bitwise74/learnhub-api/pkg/validators"
	"errors"
	"strings"
	"time"
)

var (
	ErrDuplicateEmail     = errors.New("this email is already registered, please login or use a different email")
	ErrEmailNotFound      = errors.New("email does not exist")
	ErrTokenNotFound      = errors.New("token does not exist")
	ErrTokenExpired       = errors.New("token has expired")
	ErrMissingToken       = errors.New("missing token")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionInvalid     = errors.New("invalid session")
	ErrSessionExpired     = errors.New("session expired, please log in again")
	ErrUserNotFound       = errors.New("user not found")
	ErrUnknownProvider    = errors.New("unknown sign-in provider")
)

// ValidationError lists every field the input schema rejected
type ValidationError struct {
	Fields []validators.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}

	return strings.Join(msgs, ", ")
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: []validators.FieldError{{Field: field, Message: msg}}}
}

// validate runs the struct schema and returns a *ValidationError, or nil
func validate(s any) error {
	if fields := validators.Struct(s); len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}

	return nil
}

type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return "Too many requests. " + ratelimit.WaitMessage(e.RetryAfter)
}
