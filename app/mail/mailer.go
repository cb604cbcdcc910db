package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kanet1105/linkdrive/app/digest"
)

// Config holds the SMTP account used for delivery. The secret is opaque
// to the rest of the system and never logged.
type Config struct {
	Host    string
	Port    string
	From    string
	Account string
	Secret  string
	Timeout time.Duration
}

// Mailer delivers rendered digests over SMTP, upgrading to TLS when the
// server offers STARTTLS and authenticating with PLAIN.
type Mailer struct {
	config Config
}

func NewMailer(config Config) *Mailer {
	return &Mailer{config: config}
}

// Send performs one SMTP transaction for the message. Each call opens a
// fresh connection; transient failures surface as errors for the caller's
// retry policy.
func (m *Mailer) Send(ctx context.Context, message digest.Message) error {
	addr := net.JoinHostPort(m.config.Host, m.config.Port)

	dialer := &net.Dialer{Timeout: m.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else if m.config.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(m.config.Timeout))
	}

	client, err := smtp.NewClient(conn, m.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.config.Host}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if ok, _ := client.Extension("AUTH"); ok {
		auth := smtp.PlainAuth("", m.config.Account, m.config.Secret, m.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := client.Mail(m.config.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(message.Recipient); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err := writer.Write([]byte(m.render(message))); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize message: %w", err)
	}

	if err := client.Quit(); err != nil {
		return fmt.Errorf("failed to close SMTP session: %w", err)
	}

	slog.Debug("Message delivered", "recipient", message.Recipient, "subject", message.Subject)

	return nil
}

// render produces the RFC 5322 wire form of the message. Headers and body
// are CRLF-terminated; the subject is Q-encoded only when needed.
func (m *Mailer) render(message digest.Message) string {
	var buf strings.Builder

	writeHeader := func(name, value string) {
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
	}

	writeHeader("From", m.config.From)
	writeHeader("To", message.Recipient)
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", message.Subject))
	writeHeader("Date", message.BuiltAt.Format(time.RFC1123Z))
	writeHeader("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), m.config.Host))
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", "text/plain; charset=utf-8")

	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(message.Body, "\n", "\r\n"))

	return buf.String()
}
