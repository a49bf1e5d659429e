package httpapi

import (
	"time"

	"github.com/assimetria-ai/brix/internal/server/models"
)

type userResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		EmailVerified: u.EmailVerified(),
	}
}

type sessionResponse struct {
	ID        string    `json:"id"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toSessionResponse(s *models.Session) sessionResponse {
	return sessionResponse{
		ID:        s.ID,
		IPAddress: s.IPAddress.String,
		UserAgent: s.UserAgent.String,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}

type apiKeyResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toAPIKeyResponse(k *models.APIKey) apiKeyResponse {
	resp := apiKeyResponse{
		ID:        k.ID,
		Name:      k.Name,
		KeyPrefix: k.KeyPrefix,
		CreatedAt: k.CreatedAt,
	}
	if k.ExpiresAt.Valid {
		t := k.ExpiresAt.Time
		resp.ExpiresAt = &t
	}
	if k.LastUsedAt.Valid {
		t := k.LastUsedAt.Time
		resp.LastUsedAt = &t
	}
	return resp
}

type oauthAccountResponse struct {
	Provider  string    `json:"provider"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toOAuthAccountResponse(a *models.OAuthAccount) oauthAccountResponse {
	return oauthAccountResponse{
		Provider:  a.Provider,
		Email:     a.Email.String,
		CreatedAt: a.CreatedAt,
	}
}
