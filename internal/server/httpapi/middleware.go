package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/assimetria-ai/brix/internal/common"
	"github.com/assimetria-ai/brix/internal/server/models"
	"github.com/assimetria-ai/brix/internal/server/ratelimit"
)

// middleware is a lightweight wrapper type for composing handlers.
type middleware func(http.Handler) http.Handler

type ctxKey string

const userKey ctxKey = "brix_user"

func withUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// currentUser extracts the authenticated user from the context. Handlers
// behind requireAuth can rely on a non-nil result.
func currentUser(ctx context.Context) *models.User {
	if u, ok := ctx.Value(userKey).(*models.User); ok {
		return u
	}
	return nil
}

// extractCredential pulls the bearer credential off a request. The modern
// cookie wins, then the legacy cookie name, then the Authorization header.
func extractCredential(r *http.Request) string {
	if c, err := r.Cookie(common.AccessTokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if c, err := r.Cookie(common.LegacyTokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return extractBearer(r.Header.Get("Authorization"))
}

// requireAuth resolves the request credential (JWT or API key) and injects
// the user into the context. Every failure is a uniform 401.
func (s *Server) requireAuth() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractCredential(r)
			if raw == "" {
				unauthorized(w)
				return
			}
			user, err := s.resolver.Resolve(r.Context(), raw)
			if err != nil {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// requireAdmin gates a handler on the admin role. Runs inside requireAuth.
func (s *Server) requireAdmin() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := currentUser(r.Context())
			if user == nil || user.Role != models.RoleAdmin {
				writeMessage(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// limitByIP enforces a fixed-window rule keyed on the client IP and emits
// the RateLimit headers on every response.
func (s *Server) limitByIP(rule ratelimit.Rule) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := s.limiter.Allow(r.Context(), rule, clientIP(r))

			reset := int64(d.Reset.Seconds())
			if reset < 1 {
				reset = 1
			}
			w.Header().Set("RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
			w.Header().Set("RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			w.Header().Set("RateLimit-Reset", strconv.FormatInt(reset, 10))
			if !d.Allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(reset, 10))
				writeMessage(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
