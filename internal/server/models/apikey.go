package models

import (
	"database/sql"
	"time"
)

// APIKey stores the hash of a programmatic-access key. The raw key exists
// only transiently at creation time and in the client's possession; the
// server never stores or logs it. KeyPrefix is the display-safe "sk_" plus
// the first eight hex characters.
type APIKey struct {
	ID         string
	UserID     string
	Name       string
	KeyHash    string
	KeyPrefix  string
	ExpiresAt  sql.NullTime
	LastUsedAt sql.NullTime
	CreatedAt  time.Time
}

// Expired reports whether the key has an expiry that is in the past at now.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt.Valid && k.ExpiresAt.Time.Before(now)
}
