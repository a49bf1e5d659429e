package counterstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/assimetria-ai/brix/internal/common"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store over a go-redis client.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreFromURL parses a redis:// URL and connects a client.
// No connectivity check is performed here; the service runs degraded when
// Redis is unreachable.
func NewRedisStoreFromURL(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// Incr atomically increments key and returns the new value.
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return count, nil
}

// Expire sets the key's TTL.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}

// Get returns the integer value of key, or 0 when the key is absent.
func (s *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	count, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return count, nil
}

// Set stores value with a TTL.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}

// TTL returns the remaining lifetime of key. Redis reports missing keys and
// keys without expiry as negative durations; both collapse to 0.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

// Del removes the given keys.
func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}

// Ready reports whether the store answers a ping within a short deadline.
func (s *RedisStore) Ready(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Ping(ctx).Err() == nil
}
