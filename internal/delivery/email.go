package delivery

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"gopkg.in/gomail.v2"

	"sift/internal/config"
)

// Email delivers digests over SMTP. The dialer negotiates implicit TLS when
// the configured port is 465, which is the default for Gmail.
type Email struct {
	dialer *gomail.Dialer
	from   string
	to     string
}

var _ Channel = (*Email)(nil)

// NewEmail builds an email channel from the mail settings.
func NewEmail(cfg config.EmailConfig) *Email {
	return &Email{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.From, cfg.Password),
		from:   cfg.From,
		to:     cfg.To,
	}
}

// Name implements Channel.
func (e *Email) Name() string { return "email" }

// Send mails the digest markdown wrapped in a minimal HTML shell.
func (e *Email) Send(ctx context.Context, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", e.to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody(body))

	if err := e.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("sending email to %q: %w", e.to, err)
	}

	slog.Info("digest emailed", "to", e.to, "subject", subject)
	return nil
}

// htmlBody wraps markdown in a pre block so mail clients render it
// readably without a markdown-to-HTML pass.
func htmlBody(markdown string) string {
	return `<html><body><pre style="font-family: monospace; white-space: pre-wrap;">` +
		html.EscapeString(markdown) +
		`</pre></body></html>`
}
