// Package mail delivers the verification, onboarding and password reset
// emails of the auth flow
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"gopkg.in/gomail.v2"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string

	// BaseURL is the public frontend origin links point at, e.g. https://learnhub.dev
	BaseURL         string
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// SMTP sends mail through a single SMTP relay
type SMTP struct {
	cfg    Config
	dialer *gomail.Dialer
}

func NewSMTP(cfg Config) *SMTP {
	return &SMTP{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *SMTP) SendVerification(ctx context.Context, to, token string) error {
	link := VerificationLink(s.cfg.BaseURL, token)

	return s.send(ctx, to, "Confirm your email",
		fmt.Sprintf("<p>Click <a href='%s'>here</a> to confirm your email.</p><p>This link will expire in %s.</p>",
			link, humanize(s.cfg.VerificationTTL)))
}

func (s *SMTP) SendPasswordReset(ctx context.Context, to, token string) error {
	link := ResetLink(s.cfg.BaseURL, token)

	return s.send(ctx, to, "Reset your password",
		fmt.Sprintf("<p>We received a request to reset your password.</p>"+
			"<p>Click <a href='%s'>here</a> to choose a new one. This link will expire in %s.</p>"+
			"<p>If you didn't request this you can ignore this email.</p>",
			link, humanize(s.cfg.ResetTTL)))
}

func (s *SMTP) SendWelcome(ctx context.Context, to, name string) error {
	greeting := "Hi"
	if name != "" {
		greeting = "Hi " + name
	}

	return s.send(ctx, to, "Welcome to LearnHub",
		fmt.Sprintf("<p>%s,</p><p>Your account is ready. Browse the <a href='%s/courses'>catalog</a> to start learning.</p>",
			greeting, s.cfg.BaseURL))
}

func (s *SMTP) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if to == s.cfg.Sender {
		return errors.New("invalid email address")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.Sender)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send %q mail, %w", subject, err)
	}

	return nil
}

func VerificationLink(baseURL, token string) string {
	return fmt.Sprintf("%s/auth/new-verification?token=%s", baseURL, url.QueryEscape(token))
}

func ResetLink(baseURL, token string) string {
	return fmt.Sprintf("%s/auth/new-password?token=%s", baseURL, url.QueryEscape(token))
}

func humanize(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}

	return fmt.Sprintf("%d minutes", int(d.Minutes()))
}
