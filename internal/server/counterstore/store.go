// Package counterstore abstracts the shared external key/value store used by
// the rate limiter and the account lockout guard. The interface is injected
// rather than ambient, and readiness is an explicit capability query so
// callers can choose their own degradation policy when the store is down.
package counterstore

import (
	"context"
	"time"
)

// Store is the atomic counter contract. Implementations must make Incr
// atomic; a lost Expire on first increment only widens a window by one
// request, which callers accept. All methods surface store unavailability as
// an error wrapping common.ErrStoreUnavailable — callers must treat that as
// a distinct branch, not as "not found".
type Store interface {
	// Incr atomically increments key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets the key's TTL.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Get returns the integer value of key, or 0 when the key is absent.
	Get(ctx context.Context, key string) (int64, error)

	// Set stores value with a TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// TTL returns the remaining lifetime of key, or 0 when the key is
	// absent or has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Del removes the given keys.
	Del(ctx context.Context, keys ...string) error

	// Ready reports whether the store is reachable right now.
	Ready(ctx context.Context) bool
}
