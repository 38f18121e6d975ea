// Package notify hands delivered documents to clients outside the browser: email
// through Resend or SMTP, and pre-filled WhatsApp links.
package notify

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/songon-extension/access-server/internal/config"
	apperrors "github.com/songon-extension/access-server/internal/errors"
)

type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Email struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// EmailSender dispatches one email. Implementations bound the call by their own timeout.
type EmailSender interface {
	Send(ctx context.Context, email Email) error
}

// NewEmailSender builds the sender selected by EMAIL_PROVIDER. With "none" every
// send fails with EMAIL_NOT_CONFIGURED.
func NewEmailSender(cfg *config.EmailConfig) (EmailSender, error) {
	from := (&mail.Address{Name: cfg.SenderName, Address: cfg.SenderEmail}).String()

	switch cfg.Provider {
	case "resend":
		return NewResendSender(cfg.ResendAPIKey, from), nil
	case "smtp":
		return NewSMTPSender(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     from,
			Sender:   cfg.SenderEmail,
		}), nil
	case "none", "":
		return disabledSender{}, nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

type disabledSender struct{}

func (disabledSender) Send(ctx context.Context, email Email) error {
	return apperrors.EmailNotConfigured()
}
