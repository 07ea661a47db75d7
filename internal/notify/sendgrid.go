package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/recap-reports/recap/internal/config"
)

type SendGridNotifier struct {
	cfg    config.NotifyConfig
	client *sendgrid.Client
}

func NewSendGridNotifier(cfg config.NotifyConfig) *SendGridNotifier {
	return &SendGridNotifier{
		cfg:    cfg,
		client: sendgrid.NewSendClient(cfg.APIKey),
	}
}

func (n *SendGridNotifier) Name() string { return "sendgrid" }

func (n *SendGridNotifier) Notify(ctx context.Context, msg Message) error {
	if err := validateSubject(msg.Subject); err != nil {
		return err
	}

	from := sgmail.NewEmail("", n.cfg.From)
	to := sgmail.NewEmail("", n.cfg.To)
	message := sgmail.NewSingleEmail(from, msg.Subject, to, msg.Body, "")

	resp, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed with status %d", resp.StatusCode)
	}
	return nil
}
