package httpapi

import (
	"net/http"
	"time"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toUserResponse(currentUser(r.Context())))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	sessions, err := s.users.Sessions(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toSessionResponse(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if err := s.users.RevokeSession(r.Context(), user.ID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	keys, err := s.apikeys.ListKeys(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]apiKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, toAPIKeyResponse(k))
	}
	writeJSON(w, http.StatusOK, out)
}

type createAPIKeyRequest struct {
	Name          string `json:"name"`
	ExpiresInDays int    `json:"expires_in_days"`
}

type createAPIKeyResponse struct {
	Key    string         `json:"key"`
	APIKey apiKeyResponse `json:"api_key"`
}

// handleCreateAPIKey mints a key and returns the raw value in this response
// only; it is not retrievable afterwards.
func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req createAPIKeyRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}
	if req.ExpiresInDays < 0 {
		badRequest(w, "expires_in_days must not be negative")
		return
	}

	var expiresAt *time.Time
	if req.ExpiresInDays > 0 {
		t := time.Now().AddDate(0, 0, req.ExpiresInDays)
		expiresAt = &t
	}

	user := currentUser(r.Context())
	raw, key, err := s.apikeys.CreateKey(r.Context(), user.ID, req.Name, expiresAt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createAPIKeyResponse{
		Key:    raw,
		APIKey: toAPIKeyResponse(key),
	})
}

func (s *Server) handleRevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if err := s.apikeys.RevokeKey(r.Context(), user.ID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListOAuthAccounts(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	links, err := s.oauth.ListLinks(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]oauthAccountResponse, 0, len(links))
	for _, l := range links {
		out = append(out, toOAuthAccountResponse(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUnlinkOAuthAccount(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if err := s.oauth.Unlink(r.Context(), user.ID, r.PathValue("provider")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
