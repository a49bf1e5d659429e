package models

import (
	"database/sql"
	"time"
)

// RefreshToken is the persisted form of an opaque refresh token. Only the
// SHA-256 hash of the raw token is stored. FamilyID groups every token
// descended from one login; ReplacedBy points at the successor issued by a
// committed rotation and is set if and only if RevokedAt is.
type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	FamilyID   string
	ExpiresAt  time.Time
	RevokedAt  sql.NullTime
	ReplacedBy sql.NullString
	CreatedAt  time.Time
}

// Revoked reports whether the token has been revoked.
func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt.Valid
}

// Expired reports whether the token's lifetime has elapsed at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
