package mail

import (
	"fmt"
	"log/slog"
	"strconv"

	gomail "gopkg.in/gomail.v2"

	"github.com/kamistore/backend/internal/config"
	"github.com/kamistore/backend/internal/models"
)

// Mailer sends transactional mail over SMTP. When the SMTP credentials are
// not configured it degrades to a no-op that only logs the skipped send, so
// local and test environments work without a relay.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	log    *slog.Logger
}

func New(cfg *config.Config, log *slog.Logger) *Mailer {
	m := &Mailer{from: cfg.SMTP_USER, log: log}

	if cfg.SMTP_HOST == "" || cfg.SMTP_USER == "" || cfg.SMTP_PASS == "" {
		return m
	}

	port, err := strconv.Atoi(cfg.SMTP_PORT)
	if err != nil || port == 0 {
		port = 587
	}
	m.dialer = gomail.NewDialer(cfg.SMTP_HOST, port, cfg.SMTP_USER, cfg.SMTP_PASS)
	return m
}

func (m *Mailer) Send(to, subject, html string) error {
	if m.dialer == nil {
		m.log.Info("email not configured, skipping send", "to", to, "subject", subject)
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("mail: send to %s failed: %w", to, err)
	}
	return nil
}

func (m *Mailer) SendOTPEmail(to, otp, purpose string) error {
	subject := "Email Verification OTP"
	if purpose == models.PurposePasswordReset {
		subject = "Password Reset OTP"
	}

	html := fmt.Sprintf(`
    <h2>Your OTP Code</h2>
    <p>Your verification code is: <strong>%s</strong></p>
    <p>This code will expire in 10 minutes.</p>
    <p>If you did not request this, please ignore this email.</p>
  `, otp)

	return m.Send(to, subject, html)
}

func (m *Mailer) SendVerificationEmail(to, token string) error {
	html := fmt.Sprintf(`
    <h2>Verify your email</h2>
    <p>Use this token to verify your email address: <strong>%s</strong></p>
    <p>This token will expire in 24 hours.</p>
  `, token)

	return m.Send(to, "Verify your email", html)
}
