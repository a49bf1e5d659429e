// Package sessions declares the repository contract for the sessions table:
// one row per active login, always tracking the current refresh-token hash.
package sessions

import (
	"context"
	"time"

	"github.com/assimetria-ai/brix/internal/server/models"
)

// Repository defines operations for the session registry.
type Repository interface {
	// Create persists a new session row after successful login.
	Create(ctx context.Context, s *models.Session) (*models.Session, error)

	// FindActiveByUser lists all non-expired, non-revoked sessions for a
	// user, newest first.
	FindActiveByUser(ctx context.Context, userID string) ([]*models.Session, error)

	// UpdateTokenHash repoints the session tracking oldHash at newHash with a
	// fresh expiry. Called immediately after a successful rotation so the
	// session row always reflects the live token.
	UpdateTokenHash(ctx context.Context, userID, oldHash, newHash string, expiresAt time.Time) error

	// Revoke marks the session revoked, scoped to the owning user so callers
	// cannot revoke foreign sessions. It returns the session's token hash so
	// the caller can cascade-revoke the linked refresh token; absent or
	// foreign sessions yield common.ErrorNotFound.
	Revoke(ctx context.Context, id, userID string) (tokenHash string, err error)

	// RevokeAllByUser revokes every active session for a user.
	RevokeAllByUser(ctx context.Context, userID string) error

	// RevokeByTokenHash revokes the session associated with a token hash.
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
}
