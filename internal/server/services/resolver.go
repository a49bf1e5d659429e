package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/assimetria-ai/brix/internal/common"
	"github.com/assimetria-ai/brix/internal/logging"
	"github.com/assimetria-ai/brix/internal/secrets"
	"github.com/assimetria-ai/brix/internal/server/auth"
	"github.com/assimetria-ai/brix/internal/server/models"
	"github.com/assimetria-ai/brix/internal/server/repositories/repomanager"
)

// CredentialKind discriminates the two bearer credential shapes.
type CredentialKind int

const (
	// CredentialToken is a JWT access token.
	CredentialToken CredentialKind = iota
	// CredentialAPIKey is a long-lived key carrying the "sk_" prefix.
	CredentialAPIKey
)

// ClassifyCredential reports which kind of credential a raw bearer value is.
func ClassifyCredential(raw string) CredentialKind {
	if strings.HasPrefix(raw, common.APIKeyPrefix) {
		return CredentialAPIKey
	}
	return CredentialToken
}

// CredentialResolver turns a raw bearer credential into the authenticated
// user, accepting both JWT access tokens and API keys.
type CredentialResolver struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
	jwtSecret   []byte
}

func NewCredentialResolver(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger, jwtSecret []byte) *CredentialResolver {
	return &CredentialResolver{db: db, repomanager: m, log: log, jwtSecret: jwtSecret}
}

// Resolve authenticates the credential and returns its user. Failures other
// than an expired credential collapse into ErrorUnauthorized.
func (r *CredentialResolver) Resolve(ctx context.Context, raw string) (*models.User, error) {
	if ClassifyCredential(raw) == CredentialAPIKey {
		return r.resolveAPIKey(ctx, raw)
	}
	return r.resolveToken(ctx, raw)
}

func (r *CredentialResolver) resolveToken(ctx context.Context, raw string) (*models.User, error) {
	userID, err := auth.GetUserIDFromToken(raw, r.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrorUnauthorized
	}
	return r.lookupUser(ctx, userID)
}

func (r *CredentialResolver) resolveAPIKey(ctx context.Context, raw string) (*models.User, error) {
	keyHash := secrets.HashToken(raw)

	key, err := r.repomanager.APIKeys(r.db).FindByHash(ctx, keyHash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if key.Expired(time.Now()) {
		return nil, common.ErrAPIKeyExpired
	}

	// Best-effort usage stamp; never blocks or fails the request.
	go func(id string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.repomanager.APIKeys(r.db).TouchLastUsed(ctx, id); err != nil {
			r.log.Warn(ctx, "failed to stamp api key usage", "key_id", id, "error", err)
		}
	}(key.ID)

	return r.lookupUser(ctx, key.UserID)
}

// lookupUser maps a missing user to ErrorUnauthorized: a credential whose
// account is gone must not authenticate.
func (r *CredentialResolver) lookupUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := r.repomanager.Users(r.db).FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	return user, nil
}
