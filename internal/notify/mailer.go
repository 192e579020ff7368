package notify

import (
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// Mailer sends a plain text message.
type Mailer interface {
	Send(to []string, subject, body string) error
}

// SMTPMailer sends through an authenticated SMTP relay.
type SMTPMailer struct {
	Server   string // host:port
	User     string
	Password string
	From     string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(server, user, password, from string) *SMTPMailer {
	if from == "" {
		from = user
	}
	return &SMTPMailer{Server: server, User: user, Password: password, From: from, send: smtp.SendMail}
}

// Configured reports whether enough settings are present to send mail.
func (m *SMTPMailer) Configured() bool {
	return m.Server != "" && m.User != "" && m.Password != ""
}

func (m *SMTPMailer) Send(to []string, subject, body string) error {
	if !m.Configured() {
		return errors.New("SMTP settings are not configured")
	}
	if len(to) == 0 {
		return nil
	}
	host, _, err := net.SplitHostPort(m.Server)
	if err != nil {
		return fmt.Errorf("invalid SMTP server %q (expected host:port): %w", m.Server, err)
	}
	auth := smtp.PlainAuth("", m.User, m.Password, host)

	msg := []byte("From: " + headerValue(m.From) + "\r\n" +
		"To: " + headerValue(strings.Join(to, ", ")) + "\r\n" +
		"Subject: " + headerValue(subject) + "\r\n\r\n" +
		body + "\r\n")

	if err := m.send(m.Server, auth, m.From, to, msg); err != nil {
		return fmt.Errorf("sending mail via %s: %w", m.Server, err)
	}
	return nil
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// headerValue folds line breaks so a value cannot start a new header.
func headerValue(v string) string {
	return headerBreaks.Replace(v)
}
