// Package oauthaccounts declares the repository contract for the
// oauth_accounts table linking external provider identities to local users.
package oauthaccounts

import (
	"context"

	"github.com/assimetria-ai/brix/internal/server/models"
)

// Repository defines operations for OAuth identity links.
type Repository interface {
	// FindUserByProvider resolves the local user linked to
	// (provider, providerID). Returns common.ErrorNotFound when no link
	// exists.
	FindUserByProvider(ctx context.Context, provider, providerID string) (*models.User, error)

	// LinkProvider inserts a link row. Conflicts on (provider, provider_id)
	// are a no-op, so repeated logins never fail or duplicate.
	LinkProvider(ctx context.Context, link *models.OAuthAccount) error

	// ListByUser lists all identities linked to a user, oldest first.
	ListByUser(ctx context.Context, userID string) ([]*models.OAuthAccount, error)

	// Unlink removes a provider link from a user, returning the number of
	// deleted rows.
	Unlink(ctx context.Context, userID, provider string) (int64, error)
}
