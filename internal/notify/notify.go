// Package notify delivers operator alerts. Telegram is the primary channel;
// SMTP is an optional fallback for operators who don't run the bot. Alerts
// are best-effort: a dead notifier never blocks order processing.
package notify

import (
	"context"

	"marketpilot/platform/logger"
)

// Notifier delivers one alert to the operator.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Multi fans an alert out to every configured channel. A channel failure is
// logged and the rest still get the alert.
type Multi struct {
	channels []Notifier
	log      *logger.Logger
}

// NewMulti builds a fan-out notifier. Nil channels are skipped.
func NewMulti(log *logger.Logger, channels ...Notifier) *Multi {
	m := &Multi{log: log}
	for _, ch := range channels {
		if ch != nil {
			m.channels = append(m.channels, ch)
		}
	}
	return m
}

// Notify sends the alert to every channel.
func (m *Multi) Notify(ctx context.Context, text string) error {
	for _, ch := range m.channels {
		if err := ch.Notify(ctx, text); err != nil {
			m.log.Error("notification channel failed", "error", err)
		}
	}
	return nil
}
