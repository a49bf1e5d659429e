// Package common defines shared constants and sentinel errors used across
// the service. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal       = errors.New("internal error")
	ErrorUnauthorized   = errors.New("unauthorized")
	ErrorForbidden      = errors.New("forbidden")
	ErrTooManyRequests  = errors.New("too many requests")
	ErrAccountLocked    = errors.New("account temporarily locked")
	ErrEmailTaken       = errors.New("email already registered")
	ErrStoreUnavailable = errors.New("counter store unavailable")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrRefreshTokenReuse   = errors.New("refresh token reuse detected")
	ErrAPIKeyExpired       = errors.New("api key expired")
)
