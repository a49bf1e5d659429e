// Package sessions provides a PostgreSQL-backed repository for the session
// registry.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

const sessionColumns = `id, user_id, token_hash, ip_address, user_agent, created_at, expires_at, revoked_at`

// Create persists a new session row after successful login.
func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	query := `
		INSERT INTO sessions (user_id, token_hash, ip_address, user_agent, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + sessionColumns
	out := &models.Session{}
	err := r.db.QueryRowContext(ctx, query,
		s.UserID, s.TokenHash, s.IPAddress, s.UserAgent, s.ExpiresAt).
		Scan(&out.ID, &out.UserID, &out.TokenHash, &out.IPAddress, &out.UserAgent,
			&out.CreatedAt, &out.ExpiresAt, &out.RevokedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// FindActiveByUser lists all non-expired, non-revoked sessions, newest first.
func (r *PostgresRepository) FindActiveByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1
		  AND revoked_at IS NULL
		  AND expires_at > now()
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		s := &models.Session{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.IPAddress, &s.UserAgent,
			&s.CreatedAt, &s.ExpiresAt, &s.RevokedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// UpdateTokenHash repoints the session tracking oldHash at newHash.
func (r *PostgresRepository) UpdateTokenHash(ctx context.Context, userID, oldHash, newHash string, expiresAt time.Time) error {
	query := `
		UPDATE sessions
		SET token_hash = $3, expires_at = $4
		WHERE user_id = $1 AND token_hash = $2 AND revoked_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, userID, oldHash, newHash, expiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Revoke marks the session revoked, scoped to the owning user, and returns
// its token hash for cascade revocation of the linked refresh token.
func (r *PostgresRepository) Revoke(ctx context.Context, id, userID string) (string, error) {
	query := `
		UPDATE sessions
		SET revoked_at = now()
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL
		RETURNING token_hash
	`
	var tokenHash string
	if err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return tokenHash, nil
}

// RevokeAllByUser revokes every active session for a user.
func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID string) error {
	query := `
		UPDATE sessions
		SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RevokeByTokenHash revokes the session associated with a token hash.
func (r *PostgresRepository) RevokeByTokenHash(ctx context.Context, tokenHash string) error {
	query := `
		UPDATE sessions
		SET revoked_at = now()
		WHERE token_hash = $1 AND revoked_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, tokenHash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
