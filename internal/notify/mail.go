package notify

import (
	"context"
	"fmt"

	"uniform-shop/internal/config"

	"github.com/wneessen/go-mail"
)

// SMTPMailer sends email through an SMTP relay, one connection per message
type SMTPMailer struct {
	cfg config.SMTPConfig
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send delivers email and returns its Message-ID header
func (m *SMTPMailer) Send(ctx context.Context, email Email) (string, error) {
	// Build message
	msg, err := m.buildMessage(email)
	if err != nil {
		return "", err
	}

	// Authenticate only when a username is set
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create mail client: %w", err)
	}

	// Dial, send, close
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return "", fmt.Errorf("failed to send email to %s: %w", email.To, err)
	}

	return messageID(msg), nil
}

func (m *SMTPMailer) buildMessage(email Email) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(email.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}

	msg.Subject(email.Subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, email.Text)
	if email.HTML != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, email.HTML)
	}

	return msg, nil
}

// messageID reads back the generated Message-ID
func messageID(msg *mail.Msg) string {
	if ids := msg.GetGenHeader(mail.HeaderMessageID); len(ids) > 0 {
		return ids[0]
	}
	return ""
}
