package config

import (
	"context"

	"github.com/pkg/errors"
	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// Mailer sends a single HTML email.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type EmailService struct {
	client *resend.Client
	from   string
	logger *zap.Logger
}

// NewEmailService returns a Resend-backed mailer, or a mailer that only logs
// when RESEND_API_KEY is not configured.
func NewEmailService(cfg *AppConfig, logger *zap.Logger) Mailer {
	if cfg.Resend.APIKey == "" || cfg.Resend.From == "" {
		logger.Warn("RESEND_API_KEY or FROM_EMAIL not set, emails will only be logged")
		return &logMailer{logger: logger}
	}
	return &EmailService{
		client: resend.NewClient(cfg.Resend.APIKey),
		from:   cfg.Resend.From,
		logger: logger,
	}
}

func (e *EmailService) SendEmail(ctx context.Context, to, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    e.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	sent, err := e.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return errors.Wrapf(err, "send email to %s", to)
	}
	e.logger.Debug("email sent", zap.String("to", to), zap.String("id", sent.Id))
	return nil
}

type logMailer struct {
	logger *zap.Logger
}

func (m *logMailer) SendEmail(_ context.Context, to, subject, _ string) error {
	m.logger.Info("email suppressed", zap.String("to", to), zap.String("subject", subject))
	return nil
}
