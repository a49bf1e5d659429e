// Package models defines the row structs persisted by the server-side
// repositories.
package models

import (
	"database/sql"
	"time"
)

// Roles assignable to a user.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the root entity. PasswordHash is empty for OAuth-only accounts.
type User struct {
	ID              string
	Email           string
	Name            string
	PasswordHash    sql.NullString
	Role            string
	EmailVerifiedAt sql.NullTime
	OnboardedAt     sql.NullTime
	CreatedAt       time.Time
}

// EmailVerified reports whether the user's email has been verified.
func (u *User) EmailVerified() bool {
	return u.EmailVerifiedAt.Valid
}
