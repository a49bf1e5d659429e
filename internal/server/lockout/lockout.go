// Package lockout tracks failed login attempts per account and locks the
// account for a cooldown period after too many failures in a row.
package lockout

import (
	"context"
	"strings"
	"time"

	"github.com/assimetria-ai/brix/internal/logging"
	"github.com/assimetria-ai/brix/internal/server/counterstore"
)

const (
	// MaxAttempts is the number of consecutive failures before a lock.
	MaxAttempts = 5
	// LockDuration is how long an account stays locked, and also the
	// window within which failures are counted.
	LockDuration = 15 * time.Minute

	attemptsPrefix = "auth:attempts:"
	lockPrefix     = "auth:lockout:"
)

// Guard enforces the lockout policy. Every store failure degrades to the
// unlocked state so that a counter outage never blocks all logins.
type Guard struct {
	store counterstore.Store
	log   logging.Logger
}

func NewGuard(store counterstore.Store, log logging.Logger) *Guard {
	return &Guard{store: store, log: log}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IncrementFailedAttempts records one failed login for the account and
// returns the attempt count so far. Reaching MaxAttempts sets the lock.
func (g *Guard) IncrementFailedAttempts(ctx context.Context, email string) int64 {
	email = normalize(email)

	count, err := g.store.Incr(ctx, attemptsPrefix+email)
	if err != nil {
		g.log.Warn(ctx, "lockout counter unavailable", "error", err)
		return 0
	}
	if count == 1 {
		if err := g.store.Expire(ctx, attemptsPrefix+email, LockDuration); err != nil {
			g.log.Error(ctx, "lockout counter expiry failed", "error", err)
		}
	}
	if count >= MaxAttempts {
		if err := g.store.Set(ctx, lockPrefix+email, "1", LockDuration); err != nil {
			g.log.Error(ctx, "failed to set lockout flag", "error", err)
		}
	}
	return count
}

// SecondsRemaining reports how many seconds are left on the account's lock,
// or 0 when the account is not locked.
func (g *Guard) SecondsRemaining(ctx context.Context, email string) int64 {
	ttl, err := g.store.TTL(ctx, lockPrefix+normalize(email))
	if err != nil {
		g.log.Warn(ctx, "lockout check unavailable, treating as unlocked", "error", err)
		return 0
	}
	if ttl <= 0 {
		return 0
	}
	secs := int64(ttl / time.Second)
	if secs == 0 {
		secs = 1
	}
	return secs
}

// FailedAttemptCount returns the number of failures recorded in the
// current window.
func (g *Guard) FailedAttemptCount(ctx context.Context, email string) int64 {
	count, err := g.store.Get(ctx, attemptsPrefix+normalize(email))
	if err != nil {
		g.log.Warn(ctx, "lockout counter unavailable", "error", err)
		return 0
	}
	return count
}

// Clear removes both the failure counter and the lock flag, typically after
// a successful login.
func (g *Guard) Clear(ctx context.Context, email string) {
	email = normalize(email)
	if err := g.store.Del(ctx, attemptsPrefix+email, lockPrefix+email); err != nil {
		g.log.Error(ctx, "failed to clear lockout state", "error", err)
	}
}
