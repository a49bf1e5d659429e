package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/assimetria-ai/brix/internal/common"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeMessage(w, http.StatusBadRequest, msg)
}

func unauthorized(w http.ResponseWriter) {
	writeMessage(w, http.StatusUnauthorized, "unauthorized")
}

// writeError maps service errors onto the uniform JSON error shape. Anything
// unrecognized is a 500 with no detail leaked.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenExpired),
		errors.Is(err, common.ErrRefreshTokenReuse),
		errors.Is(err, common.ErrAPIKeyExpired):
		unauthorized(w)
	case errors.Is(err, common.ErrorForbidden):
		writeMessage(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, common.ErrorNotFound):
		writeMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrEmailTaken):
		writeMessage(w, http.StatusConflict, "email already registered")
	case errors.Is(err, common.ErrTooManyRequests), errors.Is(err, common.ErrAccountLocked):
		writeMessage(w, http.StatusTooManyRequests, "too many requests")
	default:
		s.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// clientIP prefers X-Forwarded-For (first hop) over the socket address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func extractBearer(h string) string {
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
