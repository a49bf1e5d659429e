package httpapi

import (
	"errors"
	"net/http"
	"net/mail"
	"strconv"

	"github.com/assimetria-ai/brix/internal/common"
	"github.com/assimetria-ai/brix/internal/server/ratelimit"
	"github.com/assimetria-ai/brix/internal/server/services"
)

const minPasswordLength = 8

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		badRequest(w, "invalid email address")
		return
	}
	if len(req.Password) < minPasswordLength {
		badRequest(w, "password too short")
		return
	}

	user, err := s.users.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User        userResponse `json:"user"`
	AccessToken string       `json:"access_token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	meta := services.LoginMeta{IPAddress: clientIP(r), UserAgent: r.UserAgent()}
	user, pair, err := s.users.Login(r.Context(), req.Email, req.Password, meta)
	if err != nil {
		if errors.Is(err, common.ErrAccountLocked) {
			if secs := s.users.LockoutSecondsRemaining(r.Context(), req.Email); secs > 0 {
				w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
			}
			writeMessage(w, http.StatusTooManyRequests, "too many failed attempts")
			return
		}
		if errors.Is(err, common.ErrorUnauthorized) {
			writeMessage(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.writeError(w, r, err)
		return
	}

	s.limiter.Reset(r.Context(), ratelimit.Login, meta.IPAddress)

	s.setAuthCookies(w, pair)
	writeJSON(w, http.StatusOK, loginResponse{
		User:        toUserResponse(user),
		AccessToken: pair.AccessToken,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(common.RefreshTokenCookieName)
	if err != nil || c.Value == "" {
		unauthorized(w)
		return
	}

	pair, err := s.users.Refresh(r.Context(), c.Value)
	if err != nil {
		s.clearAuthCookies(w)
		s.writeError(w, r, err)
		return
	}

	s.setAuthCookies(w, pair)
	writeJSON(w, http.StatusOK, map[string]string{"access_token": pair.AccessToken})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(common.RefreshTokenCookieName); err == nil && c.Value != "" {
		if err := s.users.Logout(r.Context(), c.Value); err != nil {
			s.log.Error(r.Context(), "logout failed", "error", err)
		}
	}
	s.clearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if err := s.users.LogoutAll(r.Context(), user.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.clearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}
