package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kminds/kuet-auth-bot/models"
)

// MemoryOTPRepository keeps OTPs in process memory. Every operation holds a
// single mutex, which makes insert and consume atomic. Used for local runs
// and tests.
type MemoryOTPRepository struct {
	mu        sync.Mutex
	otps      map[string]*models.OTP // keyed by discord id
	issuances map[string]*models.OTPIssuance
	retention time.Duration
}

// NewMemoryOTPRepository keeps issuance markers for retention after
// creation.
func NewMemoryOTPRepository(retention time.Duration) *MemoryOTPRepository {
	return &MemoryOTPRepository{
		otps:      make(map[string]*models.OTP),
		issuances: make(map[string]*models.OTPIssuance),
		retention: retention,
	}
}

func (r *MemoryOTPRepository) Insert(_ context.Context, otp *models.OTP) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.otps[otp.DiscordID]; ok && cur.Active(otp.CreatedAt) {
		return "", models.ErrDuplicateActiveOTP
	}

	stored := *otp
	stored.ID = uuid.NewString()
	r.otps[stored.DiscordID] = &stored
	r.issuances[stored.DiscordID] = &models.OTPIssuance{
		ID:        stored.ID,
		DiscordID: stored.DiscordID,
		CreatedAt: stored.CreatedAt,
	}
	otp.ID = stored.ID
	return stored.ID, nil
}

func (r *MemoryOTPRepository) FindActiveByRequester(_ context.Context, discordID string, now time.Time) (*models.OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.otps[discordID]
	if !ok {
		return nil, nil
	}
	if !cur.Active(now) {
		delete(r.otps, discordID)
		return nil, nil
	}
	found := *cur
	return &found, nil
}

func (r *MemoryOTPRepository) FindRecentByRequester(_ context.Context, discordID string, since time.Time) (*models.OTPIssuance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	iss, ok := r.issuances[discordID]
	if !ok || iss.CreatedAt.Before(since) {
		return nil, nil
	}
	found := *iss
	return &found, nil
}

func (r *MemoryOTPRepository) FindAndDeleteByCodeAndRequester(_ context.Context, code, discordID string, now time.Time) (*models.OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.otps[discordID]
	if !ok || cur.Code != code || !cur.Active(now) {
		return nil, nil
	}
	delete(r.otps, discordID)
	return cur, nil
}

func (r *MemoryOTPRepository) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for discordID, otp := range r.otps {
		if otp.ID == id {
			delete(r.otps, discordID)
		}
	}
	for discordID, iss := range r.issuances {
		if iss.ID == id {
			delete(r.issuances, discordID)
		}
	}
	return nil
}

// Sweep drops expired OTPs and issuance markers older than the retention.
func (r *MemoryOTPRepository) Sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for discordID, otp := range r.otps {
		if !otp.Active(now) {
			delete(r.otps, discordID)
		}
	}
	for discordID, iss := range r.issuances {
		if !iss.CreatedAt.Add(r.retention).After(now) {
			delete(r.issuances, discordID)
		}
	}
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *MemoryOTPRepository) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}
