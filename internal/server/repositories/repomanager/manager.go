package repomanager

import (
	"context"
	"database/sql"

	"github.com/assimetria-ai/brix/internal/dbx"
	"github.com/assimetria-ai/brix/internal/server/repositories/apikeys"
	"github.com/assimetria-ai/brix/internal/server/repositories/oauthaccounts"
	"github.com/assimetria-ai/brix/internal/server/repositories/refreshtokens"
	"github.com/assimetria-ai/brix/internal/server/repositories/sessions"
	"github.com/assimetria-ai/brix/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to an arbitrary
// DBTX, so services can run any repository against either the pool or an
// open transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	APIKeys(db dbx.DBTX) apikeys.Repository
	OAuthAccounts(db dbx.DBTX) oauthaccounts.Repository
}
