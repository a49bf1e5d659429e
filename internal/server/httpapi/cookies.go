package httpapi

import (
	"net/http"
	"time"

	"github.com/assimetria-ai/brix/internal/common"
	"github.com/assimetria-ai/brix/internal/server/services"
)

// refreshCookiePath scopes the refresh token to the endpoints that consume
// it, so browsers never attach it to ordinary API calls.
const refreshCookiePath = "/api/auth"

func (s *Server) secureCookies() bool {
	return s.cfg.Environment != "dev" && s.cfg.Environment != "test"
}

// setAuthCookies installs both halves of a token pair as HttpOnly cookies.
func (s *Server) setAuthCookies(w http.ResponseWriter, pair *services.TokenPair) {
	secure := s.secureCookies()
	http.SetCookie(w, &http.Cookie{
		Name:     common.AccessTokenCookieName,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  time.Now().Add(s.cfg.AccessTokenValidityDuration),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     common.RefreshTokenCookieName,
		Value:    pair.RefreshToken,
		Path:     refreshCookiePath,
		Expires:  time.Now().Add(s.cfg.RefreshTokenValidityDuration),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}

// clearAuthCookies expires every auth cookie, including the legacy name.
func (s *Server) clearAuthCookies(w http.ResponseWriter) {
	secure := s.secureCookies()
	for _, c := range []struct {
		name, path string
	}{
		{common.AccessTokenCookieName, "/"},
		{common.LegacyTokenCookieName, "/"},
		{common.RefreshTokenCookieName, refreshCookiePath},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   secure,
		})
	}
}
