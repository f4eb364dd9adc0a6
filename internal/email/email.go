// Package email delivers transactional messages such as password reset links.
package email

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
)

// ErrDeliveryFailed is returned when the provider rejects or cannot accept a message.
var ErrDeliveryFailed = errors.New("email delivery failed")

// Message is a single outbound email.
type Message struct {
	To       string
	ToName   string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ResetPasswordMessage builds the password reset email for a recipient.
func ResetPasswordMessage(to, name, link string) Message {
	greeting := "Hello"
	if name != "" {
		greeting = "Hello " + name
	}
	return Message{
		To:      to,
		ToName:  name,
		Subject: "Reset your Fitmeta password",
		TextBody: fmt.Sprintf("%s,\n\nWe received a request to reset your Fitmeta password.\n"+
			"Open the link below to choose a new one. The link works once and expires soon.\n\n%s\n\n"+
			"If you did not ask for this, you can ignore this email.", greeting, link),
		HTMLBody: fmt.Sprintf("<p>%s,</p><p>We received a request to reset your Fitmeta password.</p>"+
			`<p><a href="%s">Choose a new password</a></p>`+
			"<p>The link works once and expires soon. If you did not ask for this, you can ignore this email.</p>",
			html.EscapeString(greeting), html.EscapeString(link)),
	}
}

// LogSender writes messages to the logger instead of sending them.
// It is used when no provider is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger uses slog.Default.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the message.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email not sent, no provider configured",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.TextBody,
	)
	return nil
}
