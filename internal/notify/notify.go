// Package notify emails the operator about pipeline events: failures
// that need a manual recovery step and report batches landing at the
// receiver. A headless pipeline has no other way to raise a hand.
package notify

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/recap-reports/recap/internal/config"
)

type Message struct {
	Subject string
	Body    string
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
	Name() string
}

// New returns the configured notifier, or nil when notifications are
// disabled. Callers treat a nil Notifier as "don't".
func New(cfg config.NotifyConfig) (Notifier, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if err := validateAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := validateAddress(cfg.To); err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}

	switch cfg.Provider {
	case "smtp":
		return NewSMTPNotifier(cfg), nil
	case "resend":
		return NewResendNotifier(cfg), nil
	case "sendgrid":
		return NewSendGridNotifier(cfg), nil
	}
	return nil, fmt.Errorf("unknown notify provider: %q (smtp, resend or sendgrid)", cfg.Provider)
}

// validateAddress checks for injection characters and RFC 5322 compliance
func validateAddress(addr string) error {
	if strings.ContainsAny(addr, "\r\n,;") {
		return fmt.Errorf("address contains invalid characters")
	}
	if _, err := mail.ParseAddress(addr); err != nil {
		return fmt.Errorf("invalid address format: %w", err)
	}
	return nil
}

func validateSubject(subject string) error {
	if strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("subject contains invalid characters")
	}
	return nil
}
