package email

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// ErrSendTimeout indicates the mail relay did not accept the message in time.
var ErrSendTimeout = errors.New("email send timed out")

// Message is a plain transactional email.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Sender dispatches a single message. Implementations are expected to be
// pluggable: the rest of the service only depends on this interface.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers mail through an authenticated SMTP relay.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// Send submits the message to the relay. Cancellation of ctx is checked
// before dialing; the SMTP exchange itself is bounded by the Timeout wrapper.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("email: recipient is required")
	}

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}

	body := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.FromName, s.From, msg.To, msg.Subject, msg.Text)

	if err := smtp.SendMail(addr, auth, s.From, []string{msg.To}, []byte(body)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// Timeout bounds a Sender so a slow relay cannot stall the request that
// triggered the dispatch. On timeout the underlying send keeps running; the
// caller just stops waiting for it.
type Timeout struct {
	Base  Sender
	After time.Duration
}

// Send races the wrapped sender against the configured deadline.
func (t Timeout) Send(ctx context.Context, msg Message) error {
	if t.Base == nil {
		return errors.New("email: sender not configured")
	}

	after := t.After
	if after <= 0 {
		after = 5 * time.Second
	}

	done := make(chan error, 1)
	go func() {
		done <- t.Base.Send(ctx, msg)
	}()

	timer := time.NewTimer(after)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrSendTimeout
	case err := <-done:
		return err
	}
}
