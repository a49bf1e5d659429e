package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/assimetria-ai/brix/internal/common"
	"github.com/assimetria-ai/brix/internal/secrets"
	"github.com/assimetria-ai/brix/internal/server/models"
	"github.com/assimetria-ai/brix/internal/server/repositories/repomanager"
)

// APIKeyService manages long-lived programmatic-access keys.
type APIKeyService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewAPIKeyService(db *sql.DB, m repomanager.RepositoryManager) *APIKeyService {
	return &APIKeyService{db: db, repomanager: m}
}

// CreateKey mints a new key for the user. The raw key is returned exactly
// once; the stored row carries only its hash and a display prefix.
func (s *APIKeyService) CreateKey(ctx context.Context, userID, name string, expiresAt *time.Time) (string, *models.APIKey, error) {
	raw, prefix, hash, err := secrets.NewAPIKey()
	if err != nil {
		return "", nil, common.ErrorInternal
	}

	key := &models.APIKey{
		UserID:    userID,
		Name:      name,
		KeyHash:   hash,
		KeyPrefix: prefix,
	}
	if expiresAt != nil {
		key.ExpiresAt = sql.NullTime{Time: *expiresAt, Valid: true}
	}

	stored, err := s.repomanager.APIKeys(s.db).Create(ctx, key)
	if err != nil {
		return "", nil, fmt.Errorf("error creating api key: %v", err)
	}
	return raw, stored, nil
}

// ListKeys lists the user's keys, newest first. Hashes are never included.
func (s *APIKeyService) ListKeys(ctx context.Context, userID string) ([]*models.APIKey, error) {
	keys, err := s.repomanager.APIKeys(s.db).FindAllByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing api keys: %v", err)
	}
	return keys, nil
}

// RevokeKey deletes a key scoped to the owning user. ErrorNotFound when the
// key does not exist or belongs to someone else.
func (s *APIKeyService) RevokeKey(ctx context.Context, userID, keyID string) error {
	deleted, err := s.repomanager.APIKeys(s.db).Delete(ctx, keyID, userID)
	if err != nil {
		return fmt.Errorf("error deleting api key: %v", err)
	}
	if !deleted {
		return common.ErrorNotFound
	}
	return nil
}
