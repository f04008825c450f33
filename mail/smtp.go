package mail

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	gomail "github.com/wneessen/go-mail"

	"github.com/user/ficticia-go/config"
)

// retryBaseDelay is the first backoff step between delivery attempts.
var retryBaseDelay = 500 * time.Millisecond

// sender is the part of *gomail.Client used for delivery.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// SMTPMailer sends plain-text mail through an SMTP relay.
type SMTPMailer struct {
	client     sender
	from       string
	maxRetries uint64
	logger     *slog.Logger
}

// NewSMTPMailer builds a go-mail client from cfg.
func NewSMTPMailer(cfg config.MailConfig, logger *slog.Logger) (*SMTPMailer, error) {
	if !cfg.Enabled() {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("SMTP host is not configured")
	}

	opts := []gomail.Option{gomail.WithPort(cfg.Port)}
	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.Timeout))
	}
	if cfg.StartTLS {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("host", cfg.Host).Wrap(err)
	}
	return newSMTPMailer(client, cfg.From, cfg.MaxRetries, logger), nil
}

func newSMTPMailer(client sender, from string, maxRetries uint64, logger *slog.Logger) *SMTPMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPMailer{client: client, from: from, maxRetries: maxRetries, logger: logger}
}

// Send implements auth.Mailer. Temporary SMTP failures are retried with
// exponential backoff; permanent ones (4xx vs 5xx replies) fail immediately.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return oops.Code("MAIL_INVALID_SENDER").With("from", m.from).Wrap(err)
	}
	if err := msg.To(to); err != nil {
		return oops.Code("MAIL_INVALID_RECIPIENT").With("to", to).Wrap(err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	backoff := retry.WithMaxRetries(m.maxRetries, retry.NewExponential(retryBaseDelay))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := m.client.DialAndSendWithContext(ctx, msg)
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return err
		}
		m.logger.WarnContext(ctx, "mail delivery failed, retrying", "to", to, "attempt", attempt, "error", err)
		return retry.RetryableError(err)
	})
	if err != nil {
		return oops.Code("MAIL_DELIVERY_FAILED").With("to", to).With("attempts", attempt).Wrap(err)
	}
	return nil
}

func isPermanent(err error) bool {
	var sendErr *gomail.SendError
	return errors.As(err, &sendErr) && !sendErr.IsTemp()
}
