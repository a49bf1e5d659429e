package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/assimetria-ai/brix/internal/common"
	"github.com/assimetria-ai/brix/internal/dbx"
	"github.com/assimetria-ai/brix/internal/server/models"
	"github.com/assimetria-ai/brix/internal/server/repositories/repomanager"
)

// OAuthService links external provider identities to local accounts.
type OAuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewOAuthService(db *sql.DB, m repomanager.RepositoryManager) *OAuthService {
	return &OAuthService{db: db, repomanager: m}
}

// OAuthIdentity is the profile asserted by a provider after its own flow.
type OAuthIdentity struct {
	Provider   string
	ProviderID string
	Email      string
	Name       string
}

// ResolveLogin finds or creates the local user for a provider identity:
//  1. an existing (provider, provider_id) link wins outright;
//  2. otherwise an account with the asserted email is linked to the identity;
//  3. otherwise a new passwordless account is created and linked.
//
// The email is treated as verified because the provider asserted it.
func (s *OAuthService) ResolveLogin(ctx context.Context, identity OAuthIdentity) (*models.User, error) {
	repo := s.repomanager.OAuthAccounts(s.db)

	user, err := repo.FindUserByProvider(ctx, identity.Provider, identity.ProviderID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error resolving oauth identity: %v", err)
	}

	user, err = s.repomanager.Users(s.db).FindByEmail(ctx, identity.Email)
	if err == nil {
		err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if !user.EmailVerified() {
				if err := s.repomanager.Users(tx).VerifyEmail(ctx, user.ID); err != nil {
					return err
				}
				user.EmailVerifiedAt = sql.NullTime{Time: time.Now(), Valid: true}
			}
			return s.link(ctx, tx, user.ID, identity)
		})
		if err != nil {
			return nil, fmt.Errorf("error linking oauth identity: %v", err)
		}
		return user, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error resolving oauth email: %v", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.Users(tx).Create(ctx, &models.User{
			Email:           identity.Email,
			Name:            identity.Name,
			Role:            models.RoleUser,
			EmailVerifiedAt: sql.NullTime{Time: time.Now(), Valid: true},
		})
		if err != nil {
			return err
		}
		user = created
		return s.link(ctx, tx, created.ID, identity)
	})
	if err != nil {
		return nil, fmt.Errorf("error creating oauth user: %v", err)
	}
	return user, nil
}

// ListLinks lists the providers linked to a user, oldest first.
func (s *OAuthService) ListLinks(ctx context.Context, userID string) ([]*models.OAuthAccount, error) {
	links, err := s.repomanager.OAuthAccounts(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing oauth links: %v", err)
	}
	return links, nil
}

// Unlink removes a provider link. It refuses to remove the user's last
// sign-in method: a passwordless account must keep at least one link.
func (s *OAuthService) Unlink(ctx context.Context, userID, provider string) error {
	user, err := s.repomanager.Users(s.db).FindByID(ctx, userID)
	if err != nil {
		return common.ErrorInternal
	}
	if !user.PasswordHash.Valid {
		links, err := s.ListLinks(ctx, userID)
		if err != nil {
			return err
		}
		if len(links) <= 1 {
			return common.ErrorForbidden
		}
	}

	n, err := s.repomanager.OAuthAccounts(s.db).Unlink(ctx, userID, provider)
	if err != nil {
		return fmt.Errorf("error unlinking provider: %v", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (s *OAuthService) link(ctx context.Context, db dbx.DBTX, userID string, identity OAuthIdentity) error {
	link := &models.OAuthAccount{
		UserID:     userID,
		Provider:   identity.Provider,
		ProviderID: identity.ProviderID,
	}
	if identity.Email != "" {
		link.Email = sql.NullString{String: identity.Email, Valid: true}
	}
	return s.repomanager.OAuthAccounts(db).LinkProvider(ctx, link)
}
