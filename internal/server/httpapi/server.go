// Package httpapi exposes the authentication service over HTTP. Routing is
// a stdlib ServeMux with method patterns; handlers speak JSON and set
// HttpOnly auth cookies.
package httpapi

import (
	"net/http"

	"github.com/assimetria-ai/brix/internal/logging"
	"github.com/assimetria-ai/brix/internal/server/config"
	"github.com/assimetria-ai/brix/internal/server/ratelimit"
	"github.com/assimetria-ai/brix/internal/server/services"
)

// Server wires services, the rate limiter, and routing together.
type Server struct {
	cfg      *config.Config
	log      logging.Logger
	users    *services.UserService
	apikeys  *services.APIKeyService
	oauth    *services.OAuthService
	resolver *services.CredentialResolver
	limiter  *ratelimit.Limiter
	mux      *http.ServeMux
}

func NewServer(cfg *config.Config, log logging.Logger, users *services.UserService,
	apikeys *services.APIKeyService, oauth *services.OAuthService,
	resolver *services.CredentialResolver, limiter *ratelimit.Limiter) *Server {

	s := &Server{
		cfg:      cfg,
		log:      log,
		users:    users,
		apikeys:  apikeys,
		oauth:    oauth,
		resolver: resolver,
		limiter:  limiter,
		mux:      http.NewServeMux(),
	}
	s.mountRoutes()
	return s
}

// Handler returns the root handler for an http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) mountRoutes() {
	s.handle("POST /api/auth/register", s.handleRegister, s.limitByIP(ratelimit.Register))
	s.handle("POST /api/auth/login", s.handleLogin, s.limitByIP(ratelimit.Login))
	s.handle("POST /api/auth/refresh", s.handleRefresh)
	s.handle("POST /api/auth/logout", s.handleLogout)
	s.handle("POST /api/auth/logout-all", s.handleLogoutAll, s.requireAuth())

	s.handle("GET /api/me", s.handleMe, s.requireAuth())

	s.handle("GET /api/sessions", s.handleListSessions, s.requireAuth())
	s.handle("DELETE /api/sessions/{id}", s.handleRevokeSession, s.requireAuth())

	s.handle("GET /api/api-keys", s.handleListAPIKeys, s.requireAuth())
	s.handle("POST /api/api-keys", s.handleCreateAPIKey, s.requireAuth())
	s.handle("DELETE /api/api-keys/{id}", s.handleRevokeAPIKey, s.requireAuth())

	s.handle("GET /api/oauth-accounts", s.handleListOAuthAccounts, s.requireAuth())
	s.handle("DELETE /api/oauth-accounts/{provider}", s.handleUnlinkOAuthAccount, s.requireAuth())

	s.handle("GET /api/admin/users/{id}", s.handleAdminGetUser, s.requireAuth(), s.requireAdmin())
}

// handle attaches a route with optional middlewares, outermost first.
func (s *Server) handle(pattern string, h http.HandlerFunc, mws ...middleware) {
	var handler http.Handler = h
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}
	s.mux.Handle(pattern, handler)
}
