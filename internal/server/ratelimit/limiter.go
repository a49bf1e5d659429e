// Package ratelimit provides fixed-window request limiting backed by a
// counter store, with an in-process fallback when the store is unreachable.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/assimetria-ai/brix/internal/common"
	"github.com/assimetria-ai/brix/internal/logging"
	"github.com/assimetria-ai/brix/internal/server/counterstore"
)

// Rule describes one named limiter: at most Max hits per Window,
// counted under keys with the given Prefix.
type Rule struct {
	Name   string
	Prefix string
	Max    int64
	Window time.Duration
}

// Predefined rules for the authentication endpoints.
var (
	Login         = Rule{Name: "login", Prefix: "rl:login:", Max: 10, Window: 15 * time.Minute}
	Register      = Rule{Name: "register", Prefix: "rl:register:", Max: 5, Window: time.Hour}
	PasswordReset = Rule{Name: "password-reset", Prefix: "rl:password-reset:", Max: 5, Window: time.Hour}
)

// Decision is the outcome of a limiter check for one subject.
type Decision struct {
	Allowed bool
	// Limit is the rule's maximum for the window.
	Limit int64
	// Remaining hits in the current window; zero when denied.
	Remaining int64
	// Reset is how long until the current window ends. When the request
	// was denied this doubles as the retry-after interval.
	Reset time.Duration
}

// Limiter counts hits per subject in fixed windows. A store failure never
// blocks a request: the limiter falls back to an in-process window and,
// if that is bypassed too, allows the request and logs the degradation.
type Limiter struct {
	store    counterstore.Store
	log      logging.Logger
	bypass   bool
	fallback *localWindows
}

// New builds a limiter. When environment is "test" every check allows.
func New(store counterstore.Store, log logging.Logger, environment string) *Limiter {
	return &Limiter{
		store:    store,
		log:      log,
		bypass:   strings.EqualFold(environment, "test"),
		fallback: newLocalWindows(),
	}
}

// Allow registers one hit for subject under the rule and reports whether
// the request may proceed.
func (l *Limiter) Allow(ctx context.Context, rule Rule, subject string) Decision {
	if l.bypass {
		return Decision{Allowed: true, Limit: rule.Max, Remaining: rule.Max, Reset: rule.Window}
	}

	key := rule.Prefix + subject

	count, err := l.store.Incr(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrStoreUnavailable) {
			l.log.Warn(ctx, "rate limit store unavailable, using local fallback",
				"rule", rule.Name, "error", err)
			return l.fallback.allow(rule, subject, time.Now())
		}
		l.log.Error(ctx, "rate limit check failed, allowing request",
			"rule", rule.Name, "error", err)
		return Decision{Allowed: true, Limit: rule.Max, Remaining: rule.Max, Reset: rule.Window}
	}

	reset := rule.Window
	if count == 1 {
		if err := l.store.Expire(ctx, key, rule.Window); err != nil {
			l.log.Error(ctx, "rate limit window expiry failed",
				"rule", rule.Name, "error", err)
		}
	} else if ttl, err := l.store.TTL(ctx, key); err == nil && ttl > 0 {
		reset = ttl
	}

	if count > rule.Max {
		return Decision{Allowed: false, Limit: rule.Max, Reset: reset}
	}
	return Decision{Allowed: true, Limit: rule.Max, Remaining: rule.Max - count, Reset: reset}
}

// Reset clears the counter for subject, e.g. after a successful login.
func (l *Limiter) Reset(ctx context.Context, rule Rule, subject string) {
	if l.bypass {
		return
	}
	if err := l.store.Del(ctx, rule.Prefix+subject); err != nil {
		l.log.Error(ctx, "rate limit reset failed", "rule", rule.Name, "error", err)
	}
	l.fallback.reset(rule, subject)
}

// localWindows is the in-process fallback used while the shared store is
// down. Windows are tracked per rule+subject and pruned lazily.
type localWindows struct {
	mu      sync.Mutex
	entries map[string]*localWindow
}

type localWindow struct {
	count   int64
	resetAt time.Time
}

func newLocalWindows() *localWindows {
	return &localWindows{entries: make(map[string]*localWindow)}
}

func (w *localWindows) allow(rule Rule, subject string, now time.Time) Decision {
	key := fmt.Sprintf("%s|%s", rule.Name, subject)

	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entries[key]
	if !ok || now.After(e.resetAt) {
		e = &localWindow{resetAt: now.Add(rule.Window)}
		w.entries[key] = e
	}
	e.count++

	reset := e.resetAt.Sub(now)
	if e.count > rule.Max {
		return Decision{Allowed: false, Limit: rule.Max, Reset: reset}
	}
	return Decision{Allowed: true, Limit: rule.Max, Remaining: rule.Max - e.count, Reset: reset}
}

func (w *localWindows) reset(rule Rule, subject string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, fmt.Sprintf("%s|%s", rule.Name, subject))
}
