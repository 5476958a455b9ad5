// Package mail sends plain-text visit summary emails over SMTP.
//
// The Sender interface exists so the email handler works identically whether
// a relay is configured or not: with no SMTP settings, Disabled takes its
// place and the handler reports the summary back to the caller instead of
// sending it.
package mail

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

// ErrDisabled is returned by Disabled to signal that no relay is configured.
var ErrDisabled = errors.New("mail: no SMTP relay configured")

// Sender delivers one message to a list of recipients.
type Sender interface {
	Send(to []string, subject, body string) error
}

// SMTP sends through a single relay using PLAIN auth when credentials are
// set, or unauthenticated otherwise (common for in-network relays).
type SMTP struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Send composes an RFC 5322 plain-text message and submits it to the relay.
func (s *SMTP) Send(to []string, subject, body string) error {
	if s.Host == "" || s.From == "" {
		return ErrDisabled
	}
	if len(to) == 0 {
		return errors.New("mail: no recipients")
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}
	if err := smtp.SendMail(addr, auth, s.From, to, []byte(msg.String())); err != nil {
		return fmt.Errorf("mail: send: %w", err)
	}
	return nil
}

// Disabled is the Sender used when no relay is configured. Every Send fails
// with ErrDisabled so callers can fall back to returning the rendered body.
type Disabled struct{}

func (Disabled) Send([]string, string, string) error { return ErrDisabled }
