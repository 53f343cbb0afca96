package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/kminds/kuet-auth-bot/models"
	"github.com/kminds/kuet-auth-bot/security"
	"github.com/kminds/kuet-auth-bot/utils"
)

type recorder struct {
	embeds []*discordgo.MessageEmbed
}

func (r *recorder) Respond(_ context.Context, e *discordgo.MessageEmbed) error {
	r.embeds = append(r.embeds, e)
	return nil
}

func counting(calls *int) models.CommandHandler {
	return func(context.Context, *models.Command, models.Responder) error {
		*calls++
		return nil
	}
}

func TestRequirePermission(t *testing.T) {
	policy := security.Policy{
		Channels: &security.Rule{Allowed: security.NewIDSet("42", security.DirectMessageChannel)},
		Users:    &security.Rule{Forbidden: security.NewIDSet("666")},
	}
	tests := []struct {
		name    string
		cmd     models.Command
		allowed bool
		message string
	}{
		{name: "allowed channel", cmd: models.Command{UserID: "1", ChannelID: "42"}, allowed: true},
		{name: "direct message", cmd: models.Command{UserID: "1", ChannelID: security.DirectMessageChannel}, allowed: true},
		{name: "other channel", cmd: models.Command{UserID: "1", ChannelID: "7"}, message: security.ReasonChannelNotAllowed.Message()},
		{name: "blocked user", cmd: models.Command{UserID: "666", ChannelID: "42"}, message: security.ReasonUserBlocked.Message()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			r := &recorder{}
			h := RequirePermission(policy, zap.NewNop())(counting(&calls))
			if err := h(context.Background(), &tt.cmd, r); err != nil {
				t.Fatal(err)
			}
			if tt.allowed {
				if calls != 1 || len(r.embeds) != 0 {
					t.Fatalf("calls=%d replies=%d", calls, len(r.embeds))
				}
				return
			}
			if calls != 0 {
				t.Fatal("denied invocation reached the handler")
			}
			if len(r.embeds) != 1 || r.embeds[0].Description != tt.message || r.embeds[0].Title != "❌ Permission Denied" {
				t.Fatalf("replies = %+v", r.embeds)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter()
	defer rl.Close()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	var calls int
	h := rl.RateLimit()(counting(&calls))
	cmd := &models.Command{Name: "login", UserID: "1"}

	for i := 0; i < 3; i++ {
		if err := h(context.Background(), cmd, &recorder{}); err != nil {
			t.Fatal(err)
		}
	}
	r := &recorder{}
	_ = h(context.Background(), cmd, r)
	if calls != 3 || len(r.embeds) != 1 || r.embeds[0].Color != utils.ColorWarning {
		t.Fatalf("calls=%d replies=%+v", calls, r.embeds)
	}

	// Other users and other commands have their own buckets.
	_ = h(context.Background(), &models.Command{Name: "login", UserID: "2"}, &recorder{})
	_ = h(context.Background(), &models.Command{Name: "status", UserID: "1"}, &recorder{})
	if calls != 5 {
		t.Fatalf("calls = %d, want 5", calls)
	}

	// Still blocked even though the bucket would have refilled.
	now = now.Add(time.Minute)
	_ = h(context.Background(), cmd, &recorder{})
	if calls != 5 {
		t.Fatal("blocked user got through")
	}

	now = now.Add(5 * time.Minute)
	_ = h(context.Background(), cmd, &recorder{})
	if calls != 6 {
		t.Fatalf("calls = %d after block expired", calls)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter()
	defer rl.Close()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.blockedUsers["1:login"] = now.Add(-time.Second)
	rl.blockedUsers["2:login"] = now.Add(time.Minute)
	rl.cleanup()
	if _, ok := rl.blockedUsers["1:login"]; ok {
		t.Fatal("expired block kept")
	}
	if _, ok := rl.blockedUsers["2:login"]; !ok {
		t.Fatal("live block dropped")
	}
}

func TestRecover(t *testing.T) {
	r := &recorder{}
	h := Recover(zap.NewNop())(func(context.Context, *models.Command, models.Responder) error {
		panic("boom")
	})
	err := h(context.Background(), &models.Command{Name: "verify"}, r)
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(r.embeds) != 1 || r.embeds[0].Color != utils.ColorError {
		t.Fatalf("replies = %+v", r.embeds)
	}
}

func TestCommandLogger(t *testing.T) {
	cmd := &models.Command{Name: "status"}
	wantErr := errors.New("respond failed")
	h := CommandLogger(zap.NewNop())(func(_ context.Context, c *models.Command, _ models.Responder) error {
		if c.InvocationID == "" {
			t.Fatal("invocation id not set")
		}
		return wantErr
	})
	if err := h(context.Background(), cmd, &recorder{}); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v", err)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) models.CommandMiddleware {
		return func(next models.CommandHandler) models.CommandHandler {
			return func(ctx context.Context, cmd *models.Command, r models.Responder) error {
				order = append(order, name)
				return next(ctx, cmd, r)
			}
		}
	}
	h := models.Chain(func(context.Context, *models.Command, models.Responder) error {
		order = append(order, "handler")
		return nil
	}, mw("outer"), mw("inner"))
	_ = h(context.Background(), &models.Command{}, &recorder{})
	if got := len(order); got != 3 || order[0] != "outer" || order[1] != "inner" || order[2] != "handler" {
		t.Fatalf("order = %v", order)
	}
}
