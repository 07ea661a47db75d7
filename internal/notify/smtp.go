package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/recap-reports/recap/internal/config"
)

type SMTPNotifier struct {
	cfg config.NotifyConfig
}

func NewSMTPNotifier(cfg config.NotifyConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

func (n *SMTPNotifier) Name() string { return "smtp" }

func (n *SMTPNotifier) Notify(ctx context.Context, msg Message) error {
	if err := validateSubject(msg.Subject); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.SMTP.Host, n.cfg.SMTP.Port)

	var message strings.Builder
	message.WriteString(fmt.Sprintf("From: %s\r\n", n.cfg.From))
	message.WriteString(fmt.Sprintf("To: %s\r\n", n.cfg.To))
	message.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	message.WriteString("MIME-Version: 1.0\r\n")
	message.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	message.WriteString("\r\n")
	message.WriteString(msg.Body)

	auth := smtp.PlainAuth("", n.cfg.SMTP.Username, n.cfg.SMTP.Password, n.cfg.SMTP.Host)

	var err error
	if n.cfg.SMTP.UseTLS {
		err = n.sendWithTLS(addr, auth, []byte(message.String()))
	} else {
		if n.cfg.SMTP.Username != "" {
			return fmt.Errorf("SMTP auth requires TLS")
		}
		err = smtp.SendMail(addr, nil, n.cfg.From, []string{n.cfg.To}, []byte(message.String()))
	}
	if err != nil {
		return sanitizeSMTPError(err)
	}
	return nil
}

func sanitizeSMTPError(err error) error {
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "auth") {
		return fmt.Errorf("SMTP authentication failed")
	}
	if strings.Contains(s, "certificate") {
		return fmt.Errorf("TLS certificate error")
	}
	return fmt.Errorf("SMTP error: check your configuration")
}

func (n *SMTPNotifier) sendWithTLS(addr string, auth smtp.Auth, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{
		ServerName: n.cfg.SMTP.Host,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("TLS connection failed: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, n.cfg.SMTP.Host)
	if err != nil {
		return fmt.Errorf("SMTP client creation failed: %w", err)
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	if err := client.Mail(n.cfg.From); err != nil {
		return fmt.Errorf("sender rejected: %w", err)
	}
	if err := client.Rcpt(n.cfg.To); err != nil {
		return fmt.Errorf("recipient rejected: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data command failed: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("message write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("message finalization failed: %w", err)
	}
	return client.Quit()
}
