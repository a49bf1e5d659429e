// Package auth implements issuance and verification of the short-lived
// signed access tokens (HS256 JWTs) that prove identity for a single
// request window.
package auth

import (
	"errors"
	"time"

	"github.com/assimetria-ai/brix/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims embeds the standard registered claims plus the subject user ID.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// GenerateToken signs a compact access token for userID, valid for
// validityDuration from now.
func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetUserIDFromToken verifies signature and expiry and returns the subject
// user ID. Failures are collapsed into two sentinels: common.ErrTokenExpired
// for expired-but-otherwise-valid tokens and common.ErrInvalidToken for
// everything else (bad signature, malformed input, wrong algorithm). Callers
// must not surface the distinction to clients.
func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrInvalidToken
		}
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid {
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}
