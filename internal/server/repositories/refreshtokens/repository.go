// Package refreshtokens declares the repository contract for the
// refresh_tokens table. Tokens are stored hashed and grouped into rotation
// families; revocation is a terminal state.
package refreshtokens

import (
	"context"
	"time"

	"github.com/assimetria-ai/brix/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking
// refresh tokens.
type Repository interface {
	// Create inserts a new token row for userID in familyID, expiring at
	// expiresAt, and returns the stored row.
	Create(ctx context.Context, userID, tokenHash, familyID string, expiresAt time.Time) (*models.RefreshToken, error)

	// FindByHash looks a token up by its hash regardless of validity, so the
	// caller can distinguish absent, revoked, and expired tokens. Returns
	// common.ErrorNotFound when absent.
	FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// MarkRotated sets revoked_at and replaced_by on the row identified by id,
	// but only if the row is not yet revoked. It reports whether the update
	// took effect: false means a concurrent rotation already committed, which
	// callers must treat as reuse.
	MarkRotated(ctx context.Context, id, replacedBy string) (bool, error)

	// RevokeFamily revokes every active token sharing familyID and returns
	// the hashes of the tokens it revoked, so callers can cascade-revoke
	// the sessions tracking them.
	RevokeFamily(ctx context.Context, familyID string) ([]string, error)

	// RevokeByTokenHash revokes the single active token with the given hash.
	RevokeByTokenHash(ctx context.Context, tokenHash string) error

	// RevokeAllForUser revokes every active token belonging to userID.
	RevokeAllForUser(ctx context.Context, userID string) error
}
