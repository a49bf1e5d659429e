// Package oauthaccounts provides a PostgreSQL-backed repository for OAuth
// identity links.
package oauthaccounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/assimetria-ai/brix/internal/common"
	"github.com/assimetria-ai/brix/internal/dbx"
	"github.com/assimetria-ai/brix/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindUserByProvider resolves the local user linked to (provider, providerID).
func (r *PostgresRepository) FindUserByProvider(ctx context.Context, provider, providerID string) (*models.User, error) {
	query := `
		SELECT u.id, u.email, u.name, u.password_hash, u.role, u.email_verified_at, u.onboarded_at, u.created_at
		FROM users u
		JOIN oauth_accounts oa ON oa.user_id = u.id
		WHERE oa.provider = $1 AND oa.provider_id = $2
	`
	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, provider, providerID).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role,
			&u.EmailVerifiedAt, &u.OnboardedAt, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// LinkProvider inserts a link row; conflicts on (provider, provider_id) are
// ignored so the operation is idempotent.
func (r *PostgresRepository) LinkProvider(ctx context.Context, link *models.OAuthAccount) error {
	query := `
		INSERT INTO oauth_accounts (user_id, provider, provider_id, email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, provider_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query,
		link.UserID, link.Provider, link.ProviderID, link.Email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListByUser lists all identities linked to a user, oldest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.OAuthAccount, error) {
	query := `
		SELECT id, user_id, provider, provider_id, email, created_at
		FROM oauth_accounts
		WHERE user_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.OAuthAccount
	for rows.Next() {
		a := &models.OAuthAccount{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.Provider, &a.ProviderID,
			&a.Email, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// Unlink removes a provider link from a user.
func (r *PostgresRepository) Unlink(ctx context.Context, userID, provider string) (int64, error) {
	query := `
		DELETE FROM oauth_accounts
		WHERE user_id = $1 AND provider = $2
	`
	res, err := r.db.ExecContext(ctx, query, userID, provider)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
