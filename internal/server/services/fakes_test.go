package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/assimetria-ai/brix/internal/common"
	"github.com/assimetria-ai/brix/internal/dbx"
	"github.com/assimetria-ai/brix/internal/logging"
	"github.com/assimetria-ai/brix/internal/server/models"
	apikeysrepo "github.com/assimetria-ai/brix/internal/server/repositories/apikeys"
	oauthrepo "github.com/assimetria-ai/brix/internal/server/repositories/oauthaccounts"
	refreshrepo "github.com/assimetria-ai/brix/internal/server/repositories/refreshtokens"
	sessionsrepo "github.com/assimetria-ai/brix/internal/server/repositories/sessions"
	usersrepo "github.com/assimetria-ai/brix/internal/server/repositories/users"
)

// --- shared helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// --- repository fakes ---

type fakeUsersRepo struct {
	createOut *models.User
	createErr error
	created   []*models.User

	byEmail    map[string]*models.User
	byEmailErr error

	byID    map[string]*models.User
	byIDErr error

	verified []string
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, u)
	if f.createOut != nil {
		return f.createOut, nil
	}
	out := *u
	out.ID = "u-created"
	return &out, nil
}

func (f *fakeUsersRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if f.byIDErr != nil {
		return nil, f.byIDErr
	}
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.byEmailErr != nil {
		return nil, f.byEmailErr
	}
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) VerifyEmail(ctx context.Context, id string) error {
	f.verified = append(f.verified, id)
	return nil
}

type fakeRefreshRepo struct {
	createErr error
	created   []*models.RefreshToken

	findOut *models.RefreshToken
	findErr error

	rotated    bool
	rotatedErr error
	rotateLog  [][2]string

	familyHashes   []string
	familyErr      error
	familiesCalled []string

	revokedHashes []string
	revokedUsers  []string
}

func (f *fakeRefreshRepo) Create(ctx context.Context, userID, tokenHash, familyID string, expiresAt time.Time) (*models.RefreshToken, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	t := &models.RefreshToken{
		ID:        "rt-created",
		UserID:    userID,
		TokenHash: tokenHash,
		FamilyID:  familyID,
		ExpiresAt: expiresAt,
	}
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
	f.rotateLog = append(f.rotateLog, [2]string{id, replacedBy})
	return f.rotated, f.rotatedErr
}

func (f *fakeRefreshRepo) RevokeFamily(ctx context.Context, familyID string) ([]string, error) {
	f.familiesCalled = append(f.familiesCalled, familyID)
	return f.familyHashes, f.familyErr
}

func (f *fakeRefreshRepo) RevokeByTokenHash(ctx context.Context, tokenHash string) error {
	f.revokedHashes = append(f.revokedHashes, tokenHash)
	return nil
}

func (f *fakeRefreshRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	f.revokedUsers = append(f.revokedUsers, userID)
	return nil
}

type fakeSessionsRepo struct {
	createErr error
	created   []*models.Session

	listOut []*models.Session
	listErr error

	updateErr error
	updates   [][3]string

	revokeHash string
	revokeErr  error
	revokedIDs []string

	revokedAllUsers []string
	revokedHashes   []string
}

func (f *fakeSessionsRepo) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, s)
	out := *s
	out.ID = "s-created"
	return &out, nil
}

func (f *fakeSessionsRepo) FindActiveByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	return f.listOut, f.listErr
}

func (f *fakeSessionsRepo) UpdateTokenHash(ctx context.Context, userID, oldHash, newHash string, expiresAt time.Time) error {
	f.updates = append(f.updates, [3]string{userID, oldHash, newHash})
	return f.updateErr
}

func (f *fakeSessionsRepo) Revoke(ctx context.Context, id, userID string) (string, error) {
	if f.revokeErr != nil {
		return "", f.revokeErr
	}
	f.revokedIDs = append(f.revokedIDs, id)
	return f.revokeHash, nil
}

func (f *fakeSessionsRepo) RevokeAllByUser(ctx context.Context, userID string) error {
	f.revokedAllUsers = append(f.revokedAllUsers, userID)
	return nil
}

func (f *fakeSessionsRepo) RevokeByTokenHash(ctx context.Context, tokenHash string) error {
	f.revokedHashes = append(f.revokedHashes, tokenHash)
	return nil
}

type fakeAPIKeysRepo struct {
	createOut *models.APIKey
	createErr error
	created   []*models.APIKey

	findOut *models.APIKey
	findErr error

	listOut []*models.APIKey
	listErr error

	touched   chan string
	deleted   bool
	deleteErr error
}

func (f *fakeAPIKeysRepo) Create(ctx context.Context, k *models.APIKey) (*models.APIKey, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, k)
	if f.createOut != nil {
		return f.createOut, nil
	}
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
	return f.listOut, f.listErr
}

func (f *fakeAPIKeysRepo) TouchLastUsed(ctx context.Context, id string) error {
	if f.touched != nil {
		f.touched <- id
	}
	return nil
}

func (f *fakeAPIKeysRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	return f.deleted, f.deleteErr
}

type fakeOAuthRepo struct {
	findOut *models.User
	findErr error

	linkErr error
	linked  []*models.OAuthAccount

	listOut []*models.OAuthAccount
	listErr error

	unlinkN   int64
	unlinkErr error
}

func (f *fakeOAuthRepo) FindUserByProvider(ctx context.Context, provider, providerID string) (*models.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeOAuthRepo) LinkProvider(ctx context.Context, link *models.OAuthAccount) error {
	if f.linkErr != nil {
		return f.linkErr
	}
	f.linked = append(f.linked, link)
	return nil
}

func (f *fakeOAuthRepo) ListByUser(ctx context.Context, userID string) ([]*models.OAuthAccount, error) {
	return f.listOut, f.listErr
}

func (f *fakeOAuthRepo) Unlink(ctx context.Context, userID, provider string) (int64, error) {
	return f.unlinkN, f.unlinkErr
}

// fakeRepoManager vends the fakes regardless of the DBTX handed in, so the
// same instances serve pool and transaction call sites.
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
