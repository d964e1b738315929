package mail

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"gopkg.in/gomail.v2"

	"github.com/ManuelReschke/PerkFox/internal/pkg/env"
)

// Sender delivers a single HTML e-mail.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends emails via SMTP
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewSMTPMailerFromEnv reads SMTP_HOST, SMTP_PORT, SMTP_USERNAME,
// SMTP_PASSWORD and SMTP_SENDER.
func NewSMTPMailerFromEnv() *SMTPMailer {
	port, err := strconv.Atoi(env.GetEnv("SMTP_PORT", "587"))
	if err != nil {
		port = 587
	}
	from := env.GetEnv("SMTP_SENDER", "")
	if from == "" {
		from = "no-reply@localhost"
		log.Warnf("[Mail] SMTP_SENDER not set, using default sender: %s", from)
	}
	return &SMTPMailer{
		Host:     env.GetEnv("SMTP_HOST", ""),
		Port:     port,
		Username: env.GetEnv("SMTP_USERNAME", ""),
		Password: env.GetEnv("SMTP_PASSWORD", ""),
		From:     from,
	}
}

// Enabled reports whether an SMTP host is configured.
func (m *SMTPMailer) Enabled() bool {
	return m != nil && m.Host != ""
}

// Send delivers an HTML mail.
func (m *SMTPMailer) Send(to, subject, body string) error {
	if !m.Enabled() {
		return fmt.Errorf("smtp is not configured")
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	d := gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)
	if err := d.DialAndSend(msg); err != nil {
		log.Errorf("[Mail] SMTP send error: %v", err)
		return err
	}
	log.Infof("[Mail] Email sent to %s via %s:%d", to, m.Host, m.Port)
	return nil
}
