// Package mail delivers the password reset messages sent by the auth service.
// Two implementations of auth.Mailer live here: SMTPMailer, which relays through a real
// SMTP server with go-mail, and LogMailer, which only records that a message would have
// been sent and is selected when no SMTP host is configured (local runs, tests).
package mail

import (
	"context"
	"log/slog"

	"github.com/user/ficticia-go/config"
)

// LogMailer writes one log line per message. The body is never logged because
// reset messages carry a live token.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer writing to logger (slog.Default when nil).
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send implements auth.Mailer.
func (m *LogMailer) Send(ctx context.Context, to, subject, _ string) error {
	m.logger.InfoContext(ctx, "mail delivery disabled, message dropped", "to", to, "subject", subject)
	return nil
}

// LogConfiguration reports the effective mail setup without credentials.
func LogConfiguration(ctx context.Context, logger *slog.Logger, cfg config.MailConfig) {
	if !cfg.Enabled() {
		logger.WarnContext(ctx, "SMTP_HOST not set, reset mails will only be logged")
		return
	}
	logger.InfoContext(ctx, "mail configuration",
		"host", cfg.Host,
		"port", cfg.Port,
		"from", cfg.From,
		"starttls", cfg.StartTLS,
		"auth", cfg.Username != "",
		"max_retries", cfg.MaxRetries,
	)
}
