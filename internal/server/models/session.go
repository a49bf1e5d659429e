package models

import (
	"database/sql"
	"time"
)

// Session is one row per active login. TokenHash always tracks the *current*
// refresh token of the login; rotation updates it in place. A session with
// RevokedAt set is terminal.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	IPAddress sql.NullString
	UserAgent sql.NullString
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt sql.NullTime
}
