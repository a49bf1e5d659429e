// Package apikeys declares the repository contract for the api_keys table.
package apikeys

import (
	"context"

	"github.com/assimetria-ai/brix/internal/server/models"
)

// Repository defines operations for programmatic-access keys.
type Repository interface {
	// Create inserts a new key row (hash and display prefix only; the raw
	// key never reaches this layer in retrievable form).
	Create(ctx context.Context, key *models.APIKey) (*models.APIKey, error)

	// FindByHash resolves a key by its SHA-256 hash. Returns
	// common.ErrorNotFound when absent.
	FindByHash(ctx context.Context, keyHash string) (*models.APIKey, error)

	// FindAllByUser lists a user's keys, newest first. Key hashes are not
	// selected.
	FindAllByUser(ctx context.Context, userID string) ([]*models.APIKey, error)

	// TouchLastUsed updates last_used_at. Best-effort; callers must not fail
	// a request on its error.
	TouchLastUsed(ctx context.Context, id string) error

	// Delete removes a key scoped to the owning user, reporting whether a
	// row was deleted.
	Delete(ctx context.Context, id, userID string) (bool, error)
}
