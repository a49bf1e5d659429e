// Package services contains server-side business logic. This file implements
// UserService, which handles registration, password login with lockout,
// session issuance, and logout.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/assimetria-ai/brix/internal/common"
	"github.com/assimetria-ai/brix/internal/dbx"
	"github.com/assimetria-ai/brix/internal/logging"
	"github.com/assimetria-ai/brix/internal/secrets"
	"github.com/assimetria-ai/brix/internal/server/auth"
	"github.com/assimetria-ai/brix/internal/server/config"
	"github.com/assimetria-ai/brix/internal/server/lockout"
	"github.com/assimetria-ai/brix/internal/server/models"
	"github.com/assimetria-ai/brix/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
// The refresh token is the raw value and must be handed to the client now;
// only its hash is stored.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginMeta carries request metadata recorded on the session row.
type LoginMeta struct {
	IPAddress string
	UserAgent string
}

// UserService provides account and session operations:
// - Register: create password accounts
// - Login: verify credentials under the lockout policy and mint tokens
// - Refresh: rotate refresh tokens (tokens.go)
// - Logout / LogoutAll / RevokeSession: tear sessions down
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	guard                        *lockout.Guard
	log                          logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, guard *lockout.Guard, log logging.Logger, cfg *config.Config) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		guard:                        guard,
		log:                          log,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// Register creates a new password account. The email is stored lower-cased;
// a duplicate yields ErrEmailTaken.
func (s *UserService) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	email = strings.TrimSpace(email)

	repo := s.repomanager.Users(s.db)
	if _, err := repo.FindByEmail(ctx, email); err == nil {
		return nil, common.ErrEmailTaken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error checking email: %v", err)
	}

	hash, err := secrets.HashPassword(password)
	if err != nil {
		return nil, common.ErrorInternal
	}

	user := &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: sql.NullString{String: hash, Valid: true},
		Role:         models.RoleUser,
	}
	u, err := repo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %v", err)
	}
	return u, nil
}

// Login verifies the password under the lockout policy and, on success,
// opens a session and returns the user with a fresh TokenPair. Every
// authentication failure increments the account's failure counter and
// yields the same ErrorUnauthorized, so callers cannot probe for accounts.
func (s *UserService) Login(ctx context.Context, email, password string, meta LoginMeta) (*models.User, *TokenPair, error) {
	if s.guard.SecondsRemaining(ctx, email) > 0 {
		return nil, nil, common.ErrAccountLocked
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.guard.IncrementFailedAttempts(ctx, email)
			return nil, nil, common.ErrorUnauthorized
		}
		return nil, nil, common.ErrorInternal
	}
	if !user.PasswordHash.Valid || !secrets.VerifyPassword(user.PasswordHash.String, password) {
		if s.guard.IncrementFailedAttempts(ctx, email) >= lockout.MaxAttempts {
			return nil, nil, common.ErrAccountLocked
		}
		return nil, nil, common.ErrorUnauthorized
	}

	s.guard.Clear(ctx, email)

	pair, err := s.openSession(ctx, user.ID, meta)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// LockoutSecondsRemaining reports how long the account stays locked.
func (s *UserService) LockoutSecondsRemaining(ctx context.Context, email string) int64 {
	return s.guard.SecondsRemaining(ctx, email)
}

// GetUser resolves a user by ID.
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	return user, nil
}

// Sessions lists the user's active sessions, newest first.
func (s *UserService) Sessions(ctx context.Context, userID string) ([]*models.Session, error) {
	return s.repomanager.Sessions(s.db).FindActiveByUser(ctx, userID)
}

// RevokeSession revokes one of the user's sessions and the refresh token it
// tracks. Foreign or unknown session IDs yield ErrorNotFound.
func (s *UserService) RevokeSession(ctx context.Context, userID, sessionID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tokenHash, err := s.repomanager.Sessions(tx).Revoke(ctx, sessionID, userID)
		if err != nil {
			return err
		}
		return s.repomanager.RefreshTokens(tx).RevokeByTokenHash(ctx, tokenHash)
	})
}

// Logout revokes the session and refresh token identified by the presented
// raw refresh token. Unknown tokens are a no-op: logout is idempotent.
func (s *UserService) Logout(ctx context.Context, rawRefreshToken string) error {
	tokenHash := secrets.HashToken(rawRefreshToken)
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).RevokeByTokenHash(ctx, tokenHash); err != nil {
			return err
		}
		return s.repomanager.Sessions(tx).RevokeByTokenHash(ctx, tokenHash)
	})
}

// LogoutAll revokes every session and refresh token belonging to the user.
func (s *UserService) LogoutAll(ctx context.Context, userID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, userID); err != nil {
			return err
		}
		return s.repomanager.Sessions(tx).RevokeAllByUser(ctx, userID)
	})
}

// openSession mints a token pair, starts a new token family, and records the
// session, all in one transaction.
func (s *UserService) openSession(ctx context.Context, userID string, meta LoginMeta) (*TokenPair, error) {
	access, err := auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := secrets.NewRefreshToken()
	if err != nil {
		return nil, common.ErrorInternal
	}

	tokenHash := secrets.HashToken(refresh)
	familyID := uuid.NewString()
	expiresAt := time.Now().Add(s.refreshTokenValidityDuration)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.RefreshTokens(tx).Create(ctx, userID, tokenHash, familyID, expiresAt); err != nil {
			return err
		}
		session := &models.Session{
			UserID:    userID,
			TokenHash: tokenHash,
			ExpiresAt: expiresAt,
		}
		if meta.IPAddress != "" {
			session.IPAddress = sql.NullString{String: meta.IPAddress, Valid: true}
		}
		if meta.UserAgent != "" {
			session.UserAgent = sql.NullString{String: meta.UserAgent, Valid: true}
		}
		_, err := s.repomanager.Sessions(tx).Create(ctx, session)
		return err
	})
	if err != nil {
		s.log.Error(ctx, "failed to open session", "error", err)
		return nil, common.ErrorInternal
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
