package mailer

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/nitj-alumni/alumni-erp-api/pkg/config"
)

// Message is a single outgoing e-mail.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender delivers e-mail messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends mail through an SMTP relay with gomail.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer constructs a mailer from the notifications config.
func NewSMTPMailer(cfg config.NotificationsConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		from:   cfg.From,
	}
}

// Send dials the relay and delivers msg. The context is only checked before
// dialing; gomail has no cancellation hook.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(Build(m.from, msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

// Build renders msg as a gomail message with a plain text alternative when present.
func Build(from string, msg Message) *gomail.Message {
	out := gomail.NewMessage()
	out.SetHeader("From", from)
	out.SetHeader("To", msg.To)
	out.SetHeader("Subject", msg.Subject)
	if msg.TextBody != "" {
		out.SetBody("text/plain", msg.TextBody)
		if msg.HTMLBody != "" {
			out.AddAlternative("text/html", msg.HTMLBody)
		}
		return out
	}
	out.SetBody("text/html", msg.HTMLBody)
	return out
}
