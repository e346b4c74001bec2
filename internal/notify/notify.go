// Package notify delivers advisory summaries by email. Delivery is strictly
// best-effort: a failed send is logged and reported as false, never as an
// error that could fail the pipeline.
package notify

import (
	"context"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Mailer sends one message to one recipient and reports whether delivery was
// accepted.
type Mailer interface {
	Send(ctx context.Context, recipient string, subject string, htmlBody string) bool
}

// SendGridMailer delivers through the SendGrid v3 API.
type SendGridMailer struct {
	APIKey      string
	FromAddress string
	FromName    string
	Logger      *zap.Logger
}

func (m SendGridMailer) logger() *zap.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return zap.NewNop()
}

// Send builds and posts the message. Missing configuration or an upstream
// rejection both come back as false.
func (m SendGridMailer) Send(ctx context.Context, recipient string, subject string, htmlBody string) bool {
	if strings.TrimSpace(m.APIKey) == "" || strings.TrimSpace(recipient) == "" {
		return false
	}

	from := mail.NewEmail(m.FromName, m.FromAddress)
	to := mail.NewEmail("", recipient)
	message := mail.NewSingleEmail(from, subject, to, stripTags(htmlBody), htmlBody)

	client := sendgrid.NewSendClient(m.APIKey)
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		m.logger().Warn("notification send failed", zap.String("recipient", recipient), zap.Error(err))
		return false
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		m.logger().Warn("notification rejected",
			zap.String("recipient", recipient),
			zap.Int("status", response.StatusCode),
		)
		return false
	}
	return true
}

// stripTags produces the plain-text alternative part from simple HTML.
func stripTags(html string) string {
	var builder strings.Builder
	inTag := false
	for _, character := range html {
		switch {
		case character == '<':
			inTag = true
		case character == '>':
			inTag = false
		case !inTag:
			builder.WriteRune(character)
		}
	}
	return strings.TrimSpace(builder.String())
}
