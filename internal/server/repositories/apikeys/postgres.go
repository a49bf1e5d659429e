// Package apikeys provides a PostgreSQL-backed repository for API keys.
package apikeys

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

// Create inserts a new key row.
func (r *PostgresRepository) Create(ctx context.Context, key *models.APIKey) (*models.APIKey, error) {
	query := `
		INSERT INTO api_keys (user_id, name, key_hash, key_prefix, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, name, key_prefix, expires_at, created_at
	`
	out := &models.APIKey{}
	err := r.db.QueryRowContext(ctx, query,
		key.UserID, key.Name, key.KeyHash, key.KeyPrefix, key.ExpiresAt).
		Scan(&out.ID, &out.UserID, &out.Name, &out.KeyPrefix, &out.ExpiresAt, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// FindByHash resolves a key by its SHA-256 hash.
func (r *PostgresRepository) FindByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	query := `
		SELECT id, user_id, name, key_hash, key_prefix, expires_at, last_used_at, created_at
		FROM api_keys
		WHERE key_hash = $1
	`
	k := &models.APIKey{}
	err := r.db.QueryRowContext(ctx, query, keyHash).
		Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.ExpiresAt, &k.LastUsedAt, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return k, nil
}

// FindAllByUser lists a user's keys, newest first. The key_hash column is
// deliberately not selected.
func (r *PostgresRepository) FindAllByUser(ctx context.Context, userID string) ([]*models.APIKey, error) {
	query := `
		SELECT id, user_id, name, key_prefix, expires_at, last_used_at, created_at
		FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.APIKey
	for rows.Next() {
		k := &models.APIKey{}
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyPrefix,
			&k.ExpiresAt, &k.LastUsedAt, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// TouchLastUsed updates last_used_at.
func (r *PostgresRepository) TouchLastUsed(ctx context.Context, id string) error {
	query := `
		UPDATE api_keys
		SET last_used_at = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Delete removes a key scoped to the owning user.
func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	query := `
		DELETE FROM api_keys
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}
