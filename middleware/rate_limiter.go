// middleware/rate_limiter.go
package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/kminds/kuet-auth-bot/models"
	"github.com/kminds/kuet-auth-bot/utils"
)

type commandLimit struct {
	limit rate.Limit
	burst int
}

// RateLimiter throttles commands per Discord user. A user who exhausts a
// bucket is blocked from that command for blockDuration.
type RateLimiter struct {
	users         map[string]*rate.Limiter
	blockedUsers  map[string]time.Time
	mu            *sync.RWMutex
	defaultLimit  commandLimit
	blockDuration time.Duration
	commandLimits map[string]commandLimit
	now           func() time.Time
	stop          chan struct{}
	stopOnce      sync.Once
}

func NewRateLimiter() *RateLimiter {
	limiter := &RateLimiter{
		users:         make(map[string]*rate.Limiter),
		blockedUsers:  make(map[string]time.Time),
		mu:            &sync.RWMutex{},
		defaultLimit:  commandLimit{limit: rate.Every(2 * time.Second), burst: 5},
		blockDuration: 5 * time.Minute,
		commandLimits: map[string]commandLimit{
			// Login sends mail, the OTP cooldown covers the rest.
			"login": {limit: rate.Every(10 * time.Second), burst: 3},
			// Verify is the brute force surface for codes.
			"verify": {limit: rate.Every(5 * time.Second), burst: 5},
		},
		now:  time.Now,
		stop: make(chan struct{}),
	}

	go limiter.cleanupBlockedUsers(time.Hour)

	return limiter
}

// Close stops the cleanup goroutine.
func (r *RateLimiter) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *RateLimiter) cleanupBlockedUsers(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.cleanup()
		}
	}
}

func (r *RateLimiter) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for key, blockUntil := range r.blockedUsers {
		if now.After(blockUntil) {
			delete(r.blockedUsers, key)
			// Also reset the bucket
			delete(r.users, key)
		}
	}
}

// RateLimit returns the command middleware.
func (r *RateLimiter) RateLimit() models.CommandMiddleware {
	return func(next models.CommandHandler) models.CommandHandler {
		return func(ctx context.Context, cmd *models.Command, resp models.Responder) error {
			key := cmd.UserID + ":" + cmd.Name
			now := r.now()

			r.mu.Lock()
			if blockUntil, blocked := r.blockedUsers[key]; blocked {
				if now.Before(blockUntil) {
					r.mu.Unlock()
					return resp.Respond(ctx, tooManyRequests(blockUntil.Sub(now)))
				}
				delete(r.blockedUsers, key)
				delete(r.users, key)
			}
			r.mu.Unlock()

			if !r.getLimiter(key, cmd.Name).AllowN(now, 1) {
				r.mu.Lock()
				r.blockedUsers[key] = now.Add(r.blockDuration)
				r.mu.Unlock()
				return resp.Respond(ctx, tooManyRequests(r.blockDuration))
			}

			return next(ctx, cmd, resp)
		}
	}
}

func (r *RateLimiter) getLimiter(key, command string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, exists := r.users[key]
	if !exists {
		l, ok := r.commandLimits[command]
		if !ok {
			l = r.defaultLimit
		}
		limiter = rate.NewLimiter(l.limit, l.burst)
		r.users[key] = limiter
	}
	return limiter
}

func tooManyRequests(retryAfter time.Duration) *discordgo.MessageEmbed {
	return utils.WarningEmbed("Slow Down",
		fmt.Sprintf("Too many requests. Try again in %s.", retryAfter.Round(time.Second)))
}
