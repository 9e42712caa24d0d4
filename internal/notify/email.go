package notify

import (
	"context"
	"fmt"

	"marketpilot/platform/config"

	"github.com/wneessen/go-mail"
)

// Email sends alerts to the operator's mailbox over SMTP.
type Email struct {
	client *mail.Client
	from   string
	to     string
}

// NewEmail builds the notifier, or returns nil when email is disabled.
func NewEmail(cfg config.EmailConfig) (*Email, error) {
	if !cfg.IsEmailEnabled() {
		return nil, nil
	}

	client, err := mail.NewClient(cfg.GetSMTPHost(),
		mail.WithPort(cfg.GetSMTPPort()),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.GetSMTPUsername()),
		mail.WithPassword(cfg.GetSMTPPassword()),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &Email{
		client: client,
		from:   cfg.GetEmailFromAddress(),
		to:     cfg.GetOperatorEmail(),
	}, nil
}

// Notify sends one alert email.
func (e *Email) Notify(ctx context.Context, text string) error {
	msg := mail.NewMsg()
	if err := msg.From(e.from); err != nil {
		return err
	}
	if err := msg.To(e.to); err != nil {
		return err
	}
	msg.Subject("Order automation alert")
	msg.SetBodyString(mail.TypeTextPlain, text)

	return e.client.DialAndSendWithContext(ctx, msg)
}
