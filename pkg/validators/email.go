// Package validators contains validators found throughout the application
// that have been abstracted away from the main code
package validators

import (
	"errors"
	"net/mail"
	"strings"
)

var (
	ErrEmailEmpty   = errors.New("no email address provided")
	ErrEmailInvalid = errors.New("invalid email address provided")
)

func EmailValidator(e string) error {
	if e == "" {
		return ErrEmailEmpty
	}

	// ParseAddress accepts "Name <a@b.c>", only the bare address is allowed here
	a, err := mail.ParseAddress(e)
	if err != nil || a.Address != e {
		return ErrEmailInvalid
	}

	return nil
}

// NormalizeEmail is applied before every lookup so the unique index on
// users.email is case-insensitive in practice
func NormalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
