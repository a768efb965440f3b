package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"

	"go.uber.org/zap"
	mail "gopkg.in/mail.v2"
)

const (
	FromName         = "Storefront Alerts"
	maxRetries       = 3
	LowStockTemplate = "low_stock.tmpl"
)

//go:embed "templates"
var FS embed.FS

type Client interface {
	Send(ctx context.Context, templateFile string, to []string, data any) error
}

// SMTPMailer renders an embedded template and delivers it through one SMTP
// relay. Each template defines "subject", "plainBody" and "htmlBody".
type SMTPMailer struct {
	dialer    *mail.Dialer
	fromEmail string
	backoff   time.Duration
	logger    *zap.SugaredLogger
}

func NewSMTPMailer(host string, port int, username, password, fromEmail string, logger *zap.SugaredLogger) *SMTPMailer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	d := mail.NewDialer(host, port, username, password)
	d.Timeout = 10 * time.Second
	return &SMTPMailer{dialer: d, fromEmail: fromEmail, backoff: time.Second, logger: logger}
}

func (m *SMTPMailer) Send(ctx context.Context, templateFile string, to []string, data any) error {
	if len(to) == 0 {
		return nil
	}
	subject, plain, html, err := Render(templateFile, data)
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetAddressHeader("From", m.fromEmail, FromName)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", plain)
	msg.AddAlternative("text/html", html)

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if lastErr = m.dialer.DialAndSend(msg); lastErr == nil {
			return nil
		}
		m.logger.Warnw("smtp send failed", "attempt", i+1, "template", templateFile, "error", lastErr)

		// linear backoff between attempts
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.backoff * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, lastErr)
}

// Render executes the three blocks of an embedded template.
func Render(templateFile string, data any) (subject, plain, html string, err error) {
	tmpl, err := template.ParseFS(FS, "templates/"+templateFile)
	if err != nil {
		return "", "", "", fmt.Errorf("parse template %s: %w", templateFile, err)
	}
	var buf bytes.Buffer
	if err = tmpl.ExecuteTemplate(&buf, "subject", data); err != nil {
		return "", "", "", err
	}
	subject = buf.String()

	buf.Reset()
	if err = tmpl.ExecuteTemplate(&buf, "plainBody", data); err != nil {
		return "", "", "", err
	}
	plain = buf.String()

	htmlTmpl, err := htmltemplate.ParseFS(FS, "templates/"+templateFile)
	if err != nil {
		return "", "", "", fmt.Errorf("parse template %s: %w", templateFile, err)
	}
	buf.Reset()
	if err = htmlTmpl.ExecuteTemplate(&buf, "htmlBody", data); err != nil {
		return "", "", "", err
	}
	return subject, plain, buf.String(), nil
}
