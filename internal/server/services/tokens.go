package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/assimetria-ai/brix/internal/common"
	"github.com/assimetria-ai/brix/internal/dbx"
	"github.com/assimetria-ai/brix/internal/secrets"
	"github.com/assimetria-ai/brix/internal/server/auth"
)

// errRotationLost signals that a concurrent rotation committed first; the
// caller must treat the presented token as reused.
var errRotationLost = errors.New("rotation lost to concurrent request")

// Refresh validates a raw refresh token and rotates it: the presented token
// is revoked, a successor in the same family is issued, and the session row
// is repointed at the successor, all in one transaction.
//
// A token that is already revoked means the client presented a token that
// was rotated away earlier, i.e. someone replayed it. The whole family and
// its sessions are revoked and ErrRefreshTokenReuse is returned, forcing
// every holder of the family to log in again.
func (s *UserService) Refresh(ctx context.Context, rawRefreshToken string) (*TokenPair, error) {
	tokenHash := secrets.HashToken(rawRefreshToken)

	token, err := s.repomanager.RefreshTokens(s.db).FindByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching refresh token: %v", err)
	}

	if token.Revoked() {
		s.revokeFamilyAndSessions(ctx, token.FamilyID)
		return nil, common.ErrRefreshTokenReuse
	}
	if token.Expired(time.Now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	access, err := auth.GenerateToken(token.UserID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := secrets.NewRefreshToken()
	if err != nil {
		return nil, common.ErrorInternal
	}

	newHash := secrets.HashToken(refresh)
	expiresAt := time.Now().Add(s.refreshTokenValidityDuration)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.RefreshTokens(tx)
		successor, err := repo.Create(ctx, token.UserID, newHash, token.FamilyID, expiresAt)
		if err != nil {
			return err
		}
		rotated, err := repo.MarkRotated(ctx, token.ID, successor.ID)
		if err != nil {
			return err
		}
		if !rotated {
			return errRotationLost
		}
		return s.repomanager.Sessions(tx).UpdateTokenHash(ctx, token.UserID, tokenHash, newHash, expiresAt)
	})
	if err != nil {
		if errors.Is(err, errRotationLost) {
			s.revokeFamilyAndSessions(ctx, token.FamilyID)
			return nil, common.ErrRefreshTokenReuse
		}
		return nil, fmt.Errorf("error rotating refresh token: %v", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// revokeFamilyAndSessions tears down a compromised token family together
// with every session tracking one of its tokens.
func (s *UserService) revokeFamilyAndSessions(ctx context.Context, familyID string) {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		hashes, err := s.repomanager.RefreshTokens(tx).RevokeFamily(ctx, familyID)
		if err != nil {
			return err
		}
		sessionsRepo := s.repomanager.Sessions(tx)
		for _, h := range hashes {
			if err := sessionsRepo.RevokeByTokenHash(ctx, h); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error(ctx, "failed to revoke token family", "family_id", familyID, "error", err)
	}
}
