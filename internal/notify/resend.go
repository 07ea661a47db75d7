package notify

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/recap-reports/recap/internal/config"
)

type ResendNotifier struct {
	cfg    config.NotifyConfig
	client *resend.Client
}

func NewResendNotifier(cfg config.NotifyConfig) *ResendNotifier {
	return &ResendNotifier{
		cfg:    cfg,
		client: resend.NewClient(cfg.APIKey),
	}
}

func (n *ResendNotifier) Name() string { return "resend" }

func (n *ResendNotifier) Notify(ctx context.Context, msg Message) error {
	if err := validateSubject(msg.Subject); err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    n.cfg.From,
		To:      []string{n.cfg.To},
		Subject: msg.Subject,
		Text:    msg.Body,
	}

	if _, err := n.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend send failed: %w", err)
	}
	return nil
}
