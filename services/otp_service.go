package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kminds/kuet-auth-bot/config"
	"github.com/kminds/kuet-auth-bot/models"
	"github.com/kminds/kuet-auth-bot/security"
)

// OTPStore persists OTPs. Finders return (nil, nil) when nothing matches and
// must treat records whose expires_at is not after now as absent.
type OTPStore interface {
	Insert(ctx context.Context, otp *models.OTP) (string, error)
	FindActiveByRequester(ctx context.Context, discordID string, now time.Time) (*models.OTP, error)
	FindRecentByRequester(ctx context.Context, discordID string, since time.Time) (*models.OTPIssuance, error)
	// FindAndDeleteByCodeAndRequester must find and delete in one atomic step.
	FindAndDeleteByCodeAndRequester(ctx context.Context, code, discordID string, now time.Time) (*models.OTP, error)
	DeleteByID(ctx context.Context, id string) error
}

// Notifier delivers a code to an email address. A nil error means the
// message was accepted for delivery.
type Notifier interface {
	SendOTP(ctx context.Context, to, code string) error
}

// OTPService issues and verifies one-time codes. It keeps no state between
// calls; everything observable lives in the store.
type OTPService struct {
	store    OTPStore
	notifier Notifier
	cfg      config.OTPConfig
	logger   *zap.Logger
	now      func() time.Time
}

type OTPOption func(*OTPService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) OTPOption {
	return func(s *OTPService) { s.now = now }
}

func NewOTPService(store OTPStore, notifier Notifier, cfg config.OTPConfig, logger *zap.Logger, opts ...OTPOption) *OTPService {
	s := &OTPService{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.Named("otp"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeEmail turns user input into the full address a code is issued
// for. Input with a domain is used as is; a bare prefix gets domain appended.
func NormalizeEmail(input, domain string) string {
	input = strings.TrimSpace(input)
	if strings.Contains(input, "@") {
		return strings.ToLower(input)
	}
	if domain != "" && !strings.HasPrefix(domain, "@") {
		domain = "@" + domain
	}
	return strings.ToLower(input + domain)
}

// CreateOTP issues a new code for discordID and mails it to email. It fails
// with *ActiveOTPError, *CooldownError or ErrNotificationFailed; store
// faults are returned wrapped.
func (s *OTPService) CreateOTP(ctx context.Context, email, discordID string) (string, error) {
	log := s.logger.With(zap.String("discord_id", discordID))
	now := s.now().UTC().Truncate(time.Millisecond)

	active, err := s.store.FindActiveByRequester(ctx, discordID, now)
	if err != nil {
		return "", fmt.Errorf("check active otp: %w", err)
	}
	if active != nil {
		return "", &ActiveOTPError{Remaining: active.ExpiresAt.Sub(now)}
	}

	cooldown := s.cfg.Cooldown()
	recent, err := s.store.FindRecentByRequester(ctx, discordID, now.Add(-cooldown))
	if err != nil {
		return "", fmt.Errorf("check otp cooldown: %w", err)
	}
	if recent != nil {
		return "", &CooldownError{Remaining: recent.CreatedAt.Add(cooldown).Sub(now)}
	}

	code, err := security.GenerateCode(s.cfg.Charset, s.cfg.Length)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	fullEmail := NormalizeEmail(email, s.cfg.EmailDomain)
	otp := &models.OTP{
		Code:      code,
		Email:     fullEmail,
		DiscordID: discordID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.ExpiresIn()),
	}

	id, err := s.store.Insert(ctx, otp)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateActiveOTP) {
			// Lost a race with a concurrent request for the same requester.
			return "", s.activeError(ctx, discordID, now)
		}
		if id != "" {
			s.rollback(id, log)
		}
		return "", fmt.Errorf("store otp: %w", err)
	}

	// Undelivered codes are removed, including when the notifier panics.
	delivered := false
	defer func() {
		if !delivered {
			s.rollback(id, log)
		}
	}()
	if err := s.notifier.SendOTP(ctx, fullEmail, code); err != nil {
		log.Error("failed to send otp email", zap.String("email", fullEmail), zap.Error(err))
		return "", ErrNotificationFailed
	}
	delivered = true

	log.Info("otp issued", zap.String("email", fullEmail), zap.Time("expires_at", otp.ExpiresAt))
	return code, nil
}

// VerifyOTP consumes the code and returns the email it was issued for.
func (s *OTPService) VerifyOTP(ctx context.Context, code, discordID string) (string, error) {
	now := s.now().UTC().Truncate(time.Millisecond)

	otp, err := s.store.FindAndDeleteByCodeAndRequester(ctx, strings.TrimSpace(code), discordID, now)
	if err != nil {
		return "", fmt.Errorf("consume otp: %w", err)
	}
	if otp == nil {
		return "", ErrInvalidOrExpired
	}

	s.logger.Info("otp verified", zap.String("discord_id", discordID), zap.String("email", otp.Email))
	return otp.Email, nil
}

func (s *OTPService) activeError(ctx context.Context, discordID string, now time.Time) error {
	active, err := s.store.FindActiveByRequester(ctx, discordID, now)
	if err != nil || active == nil {
		return &ActiveOTPError{Remaining: s.cfg.ExpiresIn()}
	}
	return &ActiveOTPError{Remaining: active.ExpiresAt.Sub(now)}
}

// rollback removes an OTP whose delivery failed. It runs on its own context
// so a cancelled request still cleans up; failures are only logged since the
// record expires on its own.
func (s *OTPService) rollback(id string, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.store.DeleteByID(ctx, id); err != nil {
		log.Warn("failed to delete otp after delivery failure", zap.String("otp_id", id), zap.Error(err))
	}
}
