package email

import (
	"context"
	"fmt"

	"github.com/samber/oops"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendGridSendPath = "/v3/mail/send"

// SendGridSender delivers messages through the SendGrid v3 API.
type SendGridSender struct {
	apiKey    string
	fromEmail string
	fromName  string
	host      string
}

// NewSendGridSender creates a new SendGridSender.
func NewSendGridSender(apiKey, fromEmail, fromName string) *SendGridSender {
	return &SendGridSender{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
		host:      "https://api.sendgrid.com",
	}
}

// Send delivers msg. Any non-2xx response is reported as ErrDeliveryFailed.
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.TextBody, msg.HTMLBody)

	// The client stores the request body on itself, so one is built per send.
	client := sendgrid.NewSendClient(s.apiKey)
	client.BaseURL = s.host + sendGridSendPath

	resp, err := client.SendWithContext(ctx, message)
	if err != nil {
		return oops.Code("EMAIL_SEND_FAILED").
			With("operation", "sendgrid send").
			With("to", msg.To).
			Wrap(fmt.Errorf("%w: %w", ErrDeliveryFailed, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return oops.Code("EMAIL_REJECTED").
			With("operation", "sendgrid send").
			With("to", msg.To).
			With("status", resp.StatusCode).
			Wrap(fmt.Errorf("%w: provider returned status %d", ErrDeliveryFailed, resp.StatusCode))
	}
	return nil
}
