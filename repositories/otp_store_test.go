package repositories

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kminds/kuet-auth-bot/models"
)

type otpStore interface {
	Insert(ctx context.Context, otp *models.OTP) (string, error)
	FindActiveByRequester(ctx context.Context, discordID string, now time.Time) (*models.OTP, error)
	FindRecentByRequester(ctx context.Context, discordID string, since time.Time) (*models.OTPIssuance, error)
	FindAndDeleteByCodeAndRequester(ctx context.Context, code, discordID string, now time.Time) (*models.OTP, error)
	DeleteByID(ctx context.Context, id string) error
}

const storeRetention = 2 * time.Minute

// runOTPStoreTests exercises the contract every OTP store must honour.
// newStore must return an empty store whose issuance retention is
// storeRetention.
func runOTPStoreTests(t *testing.T, newStore func(t *testing.T) otpStore) {
	base := time.Now().UTC().Truncate(time.Millisecond)
	ctx := context.Background()

	newOTP := func(discordID, code string, created time.Time, ttl time.Duration) *models.OTP {
		return &models.OTP{
			Code:      code,
			Email:     "zihad2107071@stud.kuet.ac.bd",
			DiscordID: discordID,
			CreatedAt: created,
			ExpiresAt: created.Add(ttl),
		}
	}

	t.Run("insert then find active", func(t *testing.T) {
		s := newStore(t)
		otp := newOTP("900719925474099312", "123456", base, 10*time.Minute)
		id, err := s.Insert(ctx, otp)
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if id == "" || otp.ID != id {
			t.Fatalf("Insert id = %q, otp.ID = %q", id, otp.ID)
		}

		got, err := s.FindActiveByRequester(ctx, "900719925474099312", base.Add(time.Minute))
		if err != nil {
			t.Fatalf("FindActiveByRequester: %v", err)
		}
		if got == nil {
			t.Fatal("expected active otp")
		}
		if got.Code != "123456" || got.Email != otp.Email || got.DiscordID != otp.DiscordID {
			t.Fatalf("found %+v", got)
		}
		if !got.ExpiresAt.Equal(otp.ExpiresAt) {
			t.Fatalf("ExpiresAt = %v, want %v", got.ExpiresAt, otp.ExpiresAt)
		}
	})

	t.Run("second live insert is rejected", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Insert(ctx, newOTP("1", "111111", base, 10*time.Minute)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		_, err := s.Insert(ctx, newOTP("1", "222222", base.Add(time.Second), 10*time.Minute))
		if !errors.Is(err, models.ErrDuplicateActiveOTP) {
			t.Fatalf("second Insert err = %v, want ErrDuplicateActiveOTP", err)
		}
	})

	t.Run("concurrent inserts leave one live otp", func(t *testing.T) {
		s := newStore(t)
		const n = 5
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Insert(ctx, newOTP("2", "333333", base, 10*time.Minute))
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		var ok, dup int
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, models.ErrDuplicateActiveOTP):
				dup++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if ok != 1 || dup != n-1 {
			t.Fatalf("ok=%d dup=%d, want 1 and %d", ok, dup, n-1)
		}
	})

	t.Run("expired otp is invisible and replaceable", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Insert(ctx, newOTP("3", "444444", base, time.Minute)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		later := base.Add(time.Minute)
		got, err := s.FindActiveByRequester(ctx, "3", later)
		if err != nil || got != nil {
			t.Fatalf("FindActiveByRequester at expiry = %+v, %v", got, err)
		}
		got, err = s.FindAndDeleteByCodeAndRequester(ctx, "444444", "3", later)
		if err != nil || got != nil {
			t.Fatalf("consume at expiry = %+v, %v", got, err)
		}
		if _, err := s.Insert(ctx, newOTP("3", "555555", later, time.Minute)); err != nil {
			t.Fatalf("Insert after expiry: %v", err)
		}
	})

	t.Run("recent issuance window", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Insert(ctx, newOTP("4", "666666", base, 30*time.Second)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		got, err := s.FindRecentByRequester(ctx, "4", base.Add(-storeRetention))
		if err != nil || got == nil {
			t.Fatalf("FindRecentByRequester = %+v, %v", got, err)
		}
		if !got.CreatedAt.Equal(base) {
			t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, base)
		}
		got, err = s.FindRecentByRequester(ctx, "4", base.Add(time.Millisecond))
		if err != nil || got != nil {
			t.Fatalf("FindRecentByRequester after window = %+v, %v", got, err)
		}
		got, err = s.FindRecentByRequester(ctx, "other", base.Add(-storeRetention))
		if err != nil || got != nil {
			t.Fatalf("FindRecentByRequester for other requester = %+v, %v", got, err)
		}
	})

	t.Run("consume exactly once", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Insert(ctx, newOTP("5", "777777", base, 10*time.Minute)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		now := base.Add(time.Second)

		if got, _ := s.FindAndDeleteByCodeAndRequester(ctx, "000000", "5", now); got != nil {
			t.Fatal("wrong code consumed the otp")
		}
		if got, _ := s.FindAndDeleteByCodeAndRequester(ctx, "777777", "6", now); got != nil {
			t.Fatal("wrong requester consumed the otp")
		}

		got, err := s.FindAndDeleteByCodeAndRequester(ctx, "777777", "5", now)
		if err != nil || got == nil {
			t.Fatalf("consume = %+v, %v", got, err)
		}
		if got.Email != "zihad2107071@stud.kuet.ac.bd" {
			t.Fatalf("Email = %q", got.Email)
		}
		again, err := s.FindAndDeleteByCodeAndRequester(ctx, "777777", "5", now)
		if err != nil || again != nil {
			t.Fatalf("second consume = %+v, %v", again, err)
		}
		if active, _ := s.FindActiveByRequester(ctx, "5", now); active != nil {
			t.Fatal("consumed otp still active")
		}
		// The cooldown marker survives consumption.
		if iss, _ := s.FindRecentByRequester(ctx, "5", base); iss == nil {
			t.Fatal("issuance marker removed by consume")
		}
	})

	t.Run("concurrent consume succeeds once", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Insert(ctx, newOTP("7", "888888", base, 10*time.Minute)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		const n = 5
		var wg sync.WaitGroup
		results := make(chan *models.OTP, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := s.FindAndDeleteByCodeAndRequester(ctx, "888888", "7", base.Add(time.Second))
				if err != nil {
					t.Errorf("consume: %v", err)
				}
				results <- got
			}()
		}
		wg.Wait()
		close(results)

		hits := 0
		for got := range results {
			if got != nil {
				hits++
			}
		}
		if hits != 1 {
			t.Fatalf("hits = %d, want 1", hits)
		}
	})

	t.Run("delete by id removes otp and issuance", func(t *testing.T) {
		s := newStore(t)
		id, err := s.Insert(ctx, newOTP("8", "999999", base, 10*time.Minute))
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if err := s.DeleteByID(ctx, id); err != nil {
			t.Fatalf("DeleteByID: %v", err)
		}
		if got, _ := s.FindActiveByRequester(ctx, "8", base); got != nil {
			t.Fatal("otp still active after delete")
		}
		if got, _ := s.FindRecentByRequester(ctx, "8", base.Add(-time.Minute)); got != nil {
			t.Fatal("issuance still present after delete")
		}
		if err := s.DeleteByID(ctx, id); err != nil {
			t.Fatalf("second DeleteByID: %v", err)
		}
	})
}
