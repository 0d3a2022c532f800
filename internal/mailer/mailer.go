package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/snmusic/snmusic/backend/go-services/internal/config"
)

// Mailer delivers transactional mail (verification and password-reset codes).
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTP sends mail through a plain SMTP relay using the credentials from
// configuration.
type SMTP struct {
	cfg config.SMTPConfig
}

func NewSMTP(cfg config.SMTPConfig) *SMTP {
	return &SMTP{cfg: cfg}
}

func (m *SMTP) Send(to, subject, body string) error {
	addr := m.cfg.Host + ":" + m.cfg.Port
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		m.cfg.From, to, subject, body)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	return smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg))
}

// Discard drops all mail. Used in tests and when SMTP is not configured.
type Discard struct{}

func (Discard) Send(to, subject, body string) error { return nil }
