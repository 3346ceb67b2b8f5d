package mail

import (
	"context"

	"go.uber.org/zap"
)

// Log writes links to the log instead of sending mail. Used when mail.enabled
// is off so local signups can still be completed
type Log struct {
	BaseURL string
}

func (l *Log) SendVerification(_ context.Context, to, token string) error {
	zap.L().Info("Verification mail", zap.String("to", to), zap.String("link", VerificationLink(l.BaseURL, token)))
	return nil
}

func (l *Log) SendPasswordReset(_ context.Context, to, token string) error {
	zap.L().Info("Password reset mail", zap.String("to", to), zap.String("link", ResetLink(l.BaseURL, token)))
	return nil
}

func (l *Log) SendWelcome(_ context.Context, to, _ string) error {
	zap.L().Info("Welcome mail", zap.String("to", to))
	return nil
}
