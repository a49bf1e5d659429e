package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/assimetria-ai/brix/internal/common"
	"github.com/assimetria-ai/brix/internal/server/models"
)

var googleIdentity = OAuthIdentity{
	Provider:   "google",
	ProviderID: "g-123",
	Email:      "a@example.com",
	Name:       "Alice",
}

func TestResolveLogin_ExistingLink(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager()
	rm.oauth.findOut = &models.User{ID: "u-1", Email: "a@example.com"}
	svc := NewOAuthService(db, rm)

	user, err := svc.ResolveLogin(context.Background(), googleIdentity)
	if err != nil {
		t.Fatalf("ResolveLogin error: %v", err)
	}
	if user.ID != "u-1" {
		t.Fatalf("unexpected user %q", user.ID)
	}
	if len(rm.oauth.linked) != 0 {
		t.Fatal("existing link must not be re-created")
	}
}

func TestResolveLogin_LinksByEmail(t *testing.T) {
	db, mock := newSQLMockDB(t)
	rm := newFakeRepoManager()
	rm.oauth.findErr = common.ErrorNotFound
	rm.users.byEmail["a@example.com"] = &models.User{ID: "u-1", Email: "a@example.com"}
	svc := NewOAuthService(db, rm)

	mock.ExpectBegin()
	mock.ExpectCommit()

	user, err := svc.ResolveLogin(context.Background(), googleIdentity)
	if err != nil {
		t.Fatalf("ResolveLogin error: %v", err)
	}
	if user.ID != "u-1" {
		t.Fatalf("unexpected user %q", user.ID)
	}
	if len(rm.oauth.linked) != 1 {
		t.Fatalf("expected one link, got %d", len(rm.oauth.linked))
	}
	link := rm.oauth.linked[0]
	if link.UserID != "u-1" || link.Provider != "google" || link.ProviderID != "g-123" {
		t.Fatalf("unexpected link %+v", link)
	}
}

func TestResolveLogin_LinkByEmailVerifiesUnverifiedAccount(t *testing.T) {
	db, mock := newSQLMockDB(t)
	rm := newFakeRepoManager()
	rm.oauth.findErr = common.ErrorNotFound
	rm.users.byEmail["a@example.com"] = &models.User{ID: "u-1", Email: "a@example.com"}
	svc := NewOAuthService(db, rm)

	mock.ExpectBegin()
	mock.ExpectCommit()

	user, err := svc.ResolveLogin(context.Background(), googleIdentity)
	if err != nil {
		t.Fatalf("ResolveLogin error: %v", err)
	}
	if len(rm.users.verified) != 1 || rm.users.verified[0] != "u-1" {
		t.Fatalf("expected u-1 verified, got %v", rm.users.verified)
	}
	if !user.EmailVerified() {
		t.Fatal("returned user must reflect the verification")
	}
}

func TestResolveLogin_LinkByEmailKeepsExistingVerification(t *testing.T) {
	db, mock := newSQLMockDB(t)
	rm := newFakeRepoManager()
	rm.oauth.findErr = common.ErrorNotFound
	verifiedAt := time.Now().Add(-24 * time.Hour)
	rm.users.byEmail["a@example.com"] = &models.User{
		ID:              "u-1",
		Email:           "a@example.com",
		EmailVerifiedAt: sql.NullTime{Time: verifiedAt, Valid: true},
	}
	svc := NewOAuthService(db, rm)

	mock.ExpectBegin()
	mock.ExpectCommit()

	user, err := svc.ResolveLogin(context.Background(), googleIdentity)
	if err != nil {
		t.Fatalf("ResolveLogin error: %v", err)
	}
	if len(rm.users.verified) != 0 {
		t.Fatalf("already-verified account must not be re-verified: %v", rm.users.verified)
	}
	if !user.EmailVerifiedAt.Time.Equal(verifiedAt) {
		t.Fatal("original verification timestamp must be kept")
	}
}

func TestResolveLogin_CreatesNewUser(t *testing.T) {
	db, mock := newSQLMockDB(t)
	rm := newFakeRepoManager()
	rm.oauth.findErr = common.ErrorNotFound
	svc := NewOAuthService(db, rm)

	mock.ExpectBegin()
	mock.ExpectCommit()

	user, err := svc.ResolveLogin(context.Background(), googleIdentity)
	if err != nil {
		t.Fatalf("ResolveLogin error: %v", err)
	}
	if user.ID != "u-created" {
		t.Fatalf("unexpected user %q", user.ID)
	}

	if len(rm.users.created) != 1 {
		t.Fatalf("expected one user create, got %d", len(rm.users.created))
	}
	created := rm.users.created[0]
	if created.PasswordHash.Valid {
		t.Fatal("oauth account must be passwordless")
	}
	if !created.EmailVerifiedAt.Valid {
		t.Fatal("provider-asserted email must count as verified")
	}
	if len(rm.oauth.linked) != 1 || rm.oauth.linked[0].UserID != "u-created" {
		t.Fatalf("identity not linked to the new user: %v", rm.oauth.linked)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUnlink_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager()
	rm.users.byID["u-1"] = &models.User{
		ID:           "u-1",
		PasswordHash: sql.NullString{String: "x", Valid: true},
	}
	rm.oauth.unlinkN = 1
	svc := NewOAuthService(db, rm)

	if err := svc.Unlink(context.Background(), "u-1", "google"); err != nil {
		t.Fatalf("Unlink error: %v", err)
	}
}

func TestUnlink_UnknownProvider(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager()
	rm.users.byID["u-1"] = &models.User{
		ID:           "u-1",
		PasswordHash: sql.NullString{String: "x", Valid: true},
	}
	rm.oauth.unlinkN = 0
	svc := NewOAuthService(db, rm)

	err := svc.Unlink(context.Background(), "u-1", "github")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestUnlink_RefusesLastSignInMethod(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager()
	rm.users.byID["u-1"] = &models.User{ID: "u-1"} // passwordless
	rm.oauth.listOut = []*models.OAuthAccount{{Provider: "google"}}
	svc := NewOAuthService(db, rm)

	err := svc.Unlink(context.Background(), "u-1", "google")
	if !errors.Is(err, common.ErrorForbidden) {
		t.Fatalf("expected ErrorForbidden, got %v", err)
	}
}

func TestUnlink_PasswordlessWithSecondLink(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager()
	rm.users.byID["u-1"] = &models.User{ID: "u-1"}
	rm.oauth.listOut = []*models.OAuthAccount{{Provider: "google"}, {Provider: "github"}}
	rm.oauth.unlinkN = 1
	svc := NewOAuthService(db, rm)

	if err := svc.Unlink(context.Background(), "u-1", "google"); err != nil {
		t.Fatalf("Unlink error: %v", err)
	}
}
