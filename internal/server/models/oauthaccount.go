package models

import (
	"database/sql"
	"time"
)

// OAuthAccount links an external provider identity to a local user.
// (Provider, ProviderID) is unique; linking is idempotent.
type OAuthAccount struct {
	ID         string
	UserID     string
	Provider   string
	ProviderID string
	Email      sql.NullString
	CreatedAt  time.Time
}
