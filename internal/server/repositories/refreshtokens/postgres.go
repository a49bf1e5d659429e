// Package refreshtokens provides a PostgreSQL-backed repository for the
// refresh tokens used in the authentication flow.
package refreshtokens

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

const tokenColumns = `id, user_id, token_hash, family_id, expires_at, revoked_at, replaced_by, created_at`

func scanToken(row *sql.Row) (*models.RefreshToken, error) {
	t := &models.RefreshToken{}
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.FamilyID,
		&t.ExpiresAt, &t.RevokedAt, &t.ReplacedBy, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// Create inserts a new token row.
func (r *PostgresRepository) Create(ctx context.Context, userID, tokenHash, familyID string, expiresAt time.Time) (*models.RefreshToken, error) {
	query := `
		INSERT INTO refresh_tokens (user_id, token_hash, family_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + tokenColumns
	row := r.db.QueryRowContext(ctx, query, userID, tokenHash, familyID, expiresAt)
	return scanToken(row)
}

// FindByHash looks a token up by hash regardless of validity.
func (r *PostgresRepository) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	return scanToken(r.db.QueryRowContext(ctx, query, tokenHash))
}

// MarkRotated performs the conditional revocation that makes rotation safe
// under contention: the WHERE clause only matches a not-yet-revoked row, so
// of two concurrent rotations only one observes RowsAffected == 1.
func (r *PostgresRepository) MarkRotated(ctx context.Context, id, replacedBy string) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = now(), replaced_by = $2
		WHERE id = $1 AND revoked_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, replacedBy)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

// RevokeFamily revokes every active token sharing familyID and returns the
// affected token hashes.
func (r *PostgresRepository) RevokeFamily(ctx context.Context, familyID string) ([]string, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = now()
		WHERE family_id = $1 AND revoked_at IS NULL
		RETURNING token_hash
	`
	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return hashes, nil
}

// RevokeByTokenHash revokes the single active token with the given hash.
func (r *PostgresRepository) RevokeByTokenHash(ctx context.Context, tokenHash string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = now()
		WHERE token_hash = $1 AND revoked_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, tokenHash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes every active token belonging to userID.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
