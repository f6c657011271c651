// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Sender delivers a one-time passcode (or any short message) to a voter
// out of band. A returned error means the message must be treated as not
// delivered.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender sends mail through a plain SMTP relay.
type SMTPSender struct {
	addr        string // host:port
	from        string
	dialTimeout time.Duration
}

// NewSMTPSender creates a sender for the relay at addr, sending as from.
func NewSMTPSender(addr, from string, dialTimeout time.Duration) *SMTPSender {
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	return &SMTPSender{addr: addr, from: from, dialTimeout: dialTimeout}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	timeout := s.dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	conn, err := net.DialTimeout("tcp", s.addr, timeout)
	if err != nil {
		return fmt.Errorf("failed to reach SMTP relay: %w", err)
	}

	host := s.addr
	if h, _, splitErr := net.SplitHostPort(s.addr); splitErr == nil {
		host = h
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open SMTP session: %w", err)
	}
	defer client.Close()

	if err := client.Mail(s.from); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	var msg strings.Builder
	msg.WriteString("From: " + s.from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	if _, err := wc.Write([]byte(msg.String())); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return client.Quit()
}

// LogSender writes messages to the log instead of delivering them. For
// development only: the OTP plaintext ends up in the log stream.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, subject, body string) error {
	slog.Info("notification (log sender)", "to", to, "subject", subject, "body", body)
	return nil
}
