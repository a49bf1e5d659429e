package httpapi

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/assimetria-ai/brix/internal/common"
	"github.com/assimetria-ai/brix/internal/dbx"
	"github.com/assimetria-ai/brix/internal/logging"
	"github.com/assimetria-ai/brix/internal/server/config"
	"github.com/assimetria-ai/brix/internal/server/counterstore"
	"github.com/assimetria-ai/brix/internal/server/lockout"
	"github.com/assimetria-ai/brix/internal/server/models"
	"github.com/assimetria-ai/brix/internal/server/ratelimit"
	apikeysrepo "github.com/assimetria-ai/brix/internal/server/repositories/apikeys"
	oauthrepo "github.com/assimetria-ai/brix/internal/server/repositories/oauthaccounts"
	refreshrepo "github.com/assimetria-ai/brix/internal/server/repositories/refreshtokens"
	sessionsrepo "github.com/assimetria-ai/brix/internal/server/repositories/sessions"
	usersrepo "github.com/assimetria-ai/brix/internal/server/repositories/users"
	"github.com/assimetria-ai/brix/internal/server/services"
)

// --- repository fakes with canned answers ---

type fakeUsersRepo struct {
	byEmail map[string]*models.User
	byID    map[string]*models.User
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	out := *u
	out.ID = "u-created"
	return &out, nil
}

func (f *fakeUsersRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) VerifyEmail(ctx context.Context, id string) error { return nil }

type fakeRefreshRepo struct {
	findOut *models.RefreshToken
	findErr error
	rotated bool

	created       []*models.RefreshToken
	revokedHashes []string
}

func (f *fakeRefreshRepo) Create(ctx context.Context, userID, tokenHash, familyID string, expiresAt time.Time) (*models.RefreshToken, error) {
	t := &models.RefreshToken{ID: "rt-created", UserID: userID, TokenHash: tokenHash, FamilyID: familyID, ExpiresAt: expiresAt}
	f.created = append(f.created, t)
	return t, nil
}

func (f *fakeRefreshRepo) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeRefreshRepo) MarkRotated(ctx context.Context, id, replacedBy string) (bool, error) {
	return f.rotated, nil
}

func (f *fakeRefreshRepo) RevokeFamily(ctx context.Context, familyID string) ([]string, error) {
	return nil, nil
}

func (f *fakeRefreshRepo) RevokeByTokenHash(ctx context.Context, tokenHash string) error {
	f.revokedHashes = append(f.revokedHashes, tokenHash)
	return nil
}

func (f *fakeRefreshRepo) RevokeAllForUser(ctx context.Context, userID string) error { return nil }

type fakeSessionsRepo struct {
	listOut   []*models.Session
	revokeErr error
	created   []*models.Session
}

func (f *fakeSessionsRepo) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	f.created = append(f.created, s)
	out := *s
	out.ID = "s-created"
	return &out, nil
}

func (f *fakeSessionsRepo) FindActiveByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	return f.listOut, nil
}

func (f *fakeSessionsRepo) UpdateTokenHash(ctx context.Context, userID, oldHash, newHash string, expiresAt time.Time) error {
	return nil
}

func (f *fakeSessionsRepo) Revoke(ctx context.Context, id, userID string) (string, error) {
	if f.revokeErr != nil {
		return "", f.revokeErr
	}
	return "hash-1", nil
}

func (f *fakeSessionsRepo) RevokeAllByUser(ctx context.Context, userID string) error { return nil }

func (f *fakeSessionsRepo) RevokeByTokenHash(ctx context.Context, tokenHash string) error {
	return nil
}

type fakeAPIKeysRepo struct {
	findOut *models.APIKey
	findErr error
	listOut []*models.APIKey
	deleted bool
}

func (f *fakeAPIKeysRepo) Create(ctx context.Context, k *models.APIKey) (*models.APIKey, error) {
	out := *k
	out.ID = "ak-created"
	return &out, nil
}

func (f *fakeAPIKeysRepo) FindByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeAPIKeysRepo) FindAllByUser(ctx context.Context, userID string) ([]*models.APIKey, error) {
	return f.listOut, nil
}

func (f *fakeAPIKeysRepo) TouchLastUsed(ctx context.Context, id string) error { return nil }

func (f *fakeAPIKeysRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	return f.deleted, nil
}

type fakeOAuthRepo struct {
	listOut []*models.OAuthAccount
	unlinkN int64
}

func (f *fakeOAuthRepo) FindUserByProvider(ctx context.Context, provider, providerID string) (*models.User, error) {
	return nil, common.ErrorNotFound
}

func (f *fakeOAuthRepo) LinkProvider(ctx context.Context, link *models.OAuthAccount) error {
	return nil
}

func (f *fakeOAuthRepo) ListByUser(ctx context.Context, userID string) ([]*models.OAuthAccount, error) {
	return f.listOut, nil
}

func (f *fakeOAuthRepo) Unlink(ctx context.Context, userID, provider string) (int64, error) {
	return f.unlinkN, nil
}

type fakeRepoManager struct {
	users    *fakeUsersRepo
	refresh  *fakeRefreshRepo
	sessions *fakeSessionsRepo
	apikeys  *fakeAPIKeysRepo
	oauth    *fakeOAuthRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:    &fakeUsersRepo{byEmail: map[string]*models.User{}, byID: map[string]*models.User{}},
		refresh:  &fakeRefreshRepo{},
		sessions: &fakeSessionsRepo{},
		apikeys:  &fakeAPIKeysRepo{},
		oauth:    &fakeOAuthRepo{},
	}
}

func (m *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository              { return m.users }
func (m *fakeRepoManager) Sessions(db dbx.DBTX) sessionsrepo.Repository        { return m.sessions }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshrepo.Repository    { return m.refresh }
func (m *fakeRepoManager) APIKeys(db dbx.DBTX) apikeysrepo.Repository          { return m.apikeys }
func (m *fakeRepoManager) OAuthAccounts(db dbx.DBTX) oauthrepo.Repository      { return m.oauth }

// --- server assembly ---

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "k",
		Environment:                  "dev",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}
}

func newTestServer(t *testing.T, rm *fakeRepoManager) (*Server, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := counterstore.NewRedisStore(client)

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	cfg := testConfig()
	guard := lockout.NewGuard(store, log)

	users := services.NewUserService(db, rm, guard, log, cfg)
	apikeys := services.NewAPIKeyService(db, rm)
	oauth := services.NewOAuthService(db, rm)
	resolver := services.NewCredentialResolver(db, rm, log, []byte(cfg.SecretKey))
	limiter := ratelimit.New(store, log, cfg.Environment)

	return NewServer(cfg, log, users, apikeys, oauth, resolver, limiter), mock
}
