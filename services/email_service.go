package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/kminds/kuet-auth-bot/config"
)

var ErrNotifierDisabled = errors.New("email notifier is disabled")

// NotifierStatus reports whether the email notifier can deliver codes. It is
// decided once at startup.
type NotifierStatus struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailService sends OTP emails over SMTP
type EmailService struct {
	sender    mailSender
	from      string
	fromName  string
	subject   string
	expiresIn time.Duration
	status    NotifierStatus
	logger    *zap.Logger
}

var otpEmailTemplate = template.Must(template.New("otp").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>K-MINDS Authentication</h2>
  <p>Your verification code is:</p>
  <div style="background: #f4f4f4; padding: 15px; font-size: 24px; letter-spacing: 5px; text-align: center; margin: 20px 0; font-weight: bold; border-radius: 4px;">
    {{.Code}}
  </div>
  <p>This code will expire in {{.Minutes}} minutes.</p>
  <p>If you didn't request this code, please ignore this email.</p>
  <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;" />
  <p style="font-size: 12px; color: #777;">This is an automated message, please do not reply to this email.</p>
</div>
`))

// NewEmailService builds the SMTP notifier and reports whether it is usable.
// A disabled service still satisfies Notifier; every send fails with
// ErrNotifierDisabled.
func NewEmailService(cfg config.EmailConfig, expiresIn time.Duration, logger *zap.Logger) (*EmailService, NotifierStatus) {
	logger = logger.Named("email")
	svc := &EmailService{
		from:      cfg.From,
		fromName:  cfg.FromName,
		subject:   cfg.Subject,
		expiresIn: expiresIn,
		logger:    logger,
	}

	disable := func(reason string) (*EmailService, NotifierStatus) {
		logger.Warn("email service disabled, no emails will be sent", zap.String("reason", reason))
		svc.status = NotifierStatus{Enabled: false, Reason: reason}
		return svc, svc.status
	}

	if !cfg.Enabled {
		return disable("disabled by EMAIL_ENABLED")
	}
	if cfg.Host == "" {
		return disable("SMTP_SERVER not provided")
	}
	// Some deployments wrap the password in quotes.
	password := strings.Trim(cfg.Password, `"`)
	if cfg.User == "" || password == "" {
		return disable("SMTP credentials not provided")
	}

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, InsecureSkipVerify: cfg.SkipVerify}

	if cfg.VerifyOnStart {
		conn, err := d.Dial()
		if err != nil {
			return disable(fmt.Sprintf("SMTP verification failed: %v", err))
		}
		_ = conn.Close()
		logger.Info("SMTP server connected", zap.String("host", cfg.Host), zap.Int("port", cfg.Port))
	}

	svc.sender = d
	svc.status = NotifierStatus{Enabled: true}
	return svc, svc.status
}

// Status returns the status decided at construction.
func (s *EmailService) Status() NotifierStatus {
	return s.status
}

// SendOTP mails code to the given address.
func (s *EmailService) SendOTP(ctx context.Context, to, code string) error {
	if !s.status.Enabled || s.sender == nil {
		s.logger.Warn("email service is disabled, cannot send otp", zap.String("to", to))
		return ErrNotifierDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	err := otpEmailTemplate.Execute(&body, struct {
		Code    string
		Minutes int
	}{Code: code, Minutes: s.expiryMinutes()})
	if err != nil {
		return fmt.Errorf("render otp email: %w", err)
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", s.subject)
	m.SetBody("text/plain", fmt.Sprintf("Your verification code is: %s\nThis code will expire in %d minutes.", code, s.expiryMinutes()))
	m.AddAlternative("text/html", body.String())

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent", zap.String("to", to))
	return nil
}

func (s *EmailService) expiryMinutes() int {
	return int((s.expiresIn + time.Minute - 1) / time.Minute)
}
