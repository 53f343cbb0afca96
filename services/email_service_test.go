package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/kminds/kuet-auth-bot/config"
)

type fakeMailSender struct {
	messages []*gomail.Message
	err      error
}

func (f *fakeMailSender) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, m...)
	return nil
}

func smtpConfig() config.EmailConfig {
	return config.EmailConfig{
		Enabled:  true,
		From:     "noreply@kminds",
		FromName: "KUET Auth",
		Subject:  "Your Verification Code",
		Host:     "smtp.example.com",
		Port:     465,
		User:     "bot",
		Password: `"secret"`,
	}
}

func TestNewEmailServiceStatus(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.EmailConfig)
		enabled bool
		reason  string
	}{
		{name: "configured", mutate: func(*config.EmailConfig) {}, enabled: true},
		{name: "turned off", mutate: func(c *config.EmailConfig) { c.Enabled = false }, reason: "disabled by EMAIL_ENABLED"},
		{name: "no host", mutate: func(c *config.EmailConfig) { c.Host = "" }, reason: "SMTP_SERVER not provided"},
		{name: "no user", mutate: func(c *config.EmailConfig) { c.User = "" }, reason: "SMTP credentials not provided"},
		{name: "quoted empty password", mutate: func(c *config.EmailConfig) { c.Password = `""` }, reason: "SMTP credentials not provided"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smtpConfig()
			tt.mutate(&cfg)
			svc, status := NewEmailService(cfg, 10*time.Minute, zap.NewNop())
			if status.Enabled != tt.enabled || status.Reason != tt.reason {
				t.Fatalf("status = %+v, want enabled=%v reason=%q", status, tt.enabled, tt.reason)
			}
			if svc.Status() != status {
				t.Fatalf("Status() = %+v, want %+v", svc.Status(), status)
			}
		})
	}
}

func TestSendOTP(t *testing.T) {
	svc, status := NewEmailService(smtpConfig(), 10*time.Minute, zap.NewNop())
	if !status.Enabled {
		t.Fatalf("status = %+v", status)
	}
	sender := &fakeMailSender{}
	svc.sender = sender

	if err := svc.SendOTP(context.Background(), "zihad2107071@stud.kuet.ac.bd", "482913"); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if len(sender.messages) != 1 {
		t.Fatalf("sent %d messages", len(sender.messages))
	}

	m := sender.messages[0]
	if got := m.GetHeader("To"); len(got) != 1 || got[0] != "zihad2107071@stud.kuet.ac.bd" {
		t.Fatalf("To = %v", got)
	}
	if got := m.GetHeader("Subject"); len(got) != 1 || got[0] != "Your Verification Code" {
		t.Fatalf("Subject = %v", got)
	}

	var raw bytes.Buffer
	if _, err := m.WriteTo(&raw); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	body := raw.String()
	for _, want := range []string{"482913", "10 minutes", "text/html"} {
		if !strings.Contains(body, want) {
			t.Errorf("message does not contain %q", want)
		}
	}
}

func TestSendOTPErrors(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		svc, _ := NewEmailService(config.EmailConfig{}, time.Minute, zap.NewNop())
		if err := svc.SendOTP(context.Background(), "a@b.c", "1"); !errors.Is(err, ErrNotifierDisabled) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("smtp failure", func(t *testing.T) {
		svc, _ := NewEmailService(smtpConfig(), time.Minute, zap.NewNop())
		smtpErr := errors.New("535 authentication failed")
		svc.sender = &fakeMailSender{err: smtpErr}
		if err := svc.SendOTP(context.Background(), "a@b.c", "1"); !errors.Is(err, smtpErr) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		svc, _ := NewEmailService(smtpConfig(), time.Minute, zap.NewNop())
		sender := &fakeMailSender{}
		svc.sender = sender
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := svc.SendOTP(ctx, "a@b.c", "1"); !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v", err)
		}
		if len(sender.messages) != 0 {
			t.Fatal("message sent on a cancelled context")
		}
	})
}

func TestExpiryMinutesRoundsUp(t *testing.T) {
	svc := &EmailService{expiresIn: 90 * time.Second}
	if got := svc.expiryMinutes(); got != 2 {
		t.Fatalf("expiryMinutes = %d, want 2", got)
	}
}
