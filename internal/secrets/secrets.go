// Package secrets provides the hashing and key-generation primitives used by
// the authentication core: opaque refresh tokens, API keys, SHA-256 digests
// for at-rest storage, and argon2id password hashes. It holds no state.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// RefreshTokenBytes is the entropy of an opaque refresh token.
	// Hex-encoded the token is 96 characters long.
	RefreshTokenBytes = 48

	// APIKeyBytes is the entropy of an API key (64 hex characters after
	// the "sk_" prefix).
	APIKeyBytes = 32

	// APIKeyPrefix marks API keys so the resolver can distinguish them
	// from signed access tokens.
	APIKeyPrefix = "sk_"

	// apiKeyDisplayHex is the number of hex characters kept after the
	// prefix for display purposes.
	apiKeyDisplayHex = 8
)

// argon2id parameters, matching the interactive-login profile.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// MakeRandHexString generates a random hexadecimal string of size random
// bytes (the resulting string is twice as long). It returns an error if the
// random number generator fails.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewRefreshToken returns a new opaque refresh token.
func NewRefreshToken() (string, error) {
	return MakeRandHexString(RefreshTokenBytes)
}

// NewAPIKey generates a raw API key and returns it along with the
// display-safe prefix and the SHA-256 hash to store. The raw key exists only
// in the return value; callers must hand it to the client exactly once.
func NewAPIKey() (raw, prefix, hash string, err error) {
	s, err := MakeRandHexString(APIKeyBytes)
	if err != nil {
		return "", "", "", err
	}
	raw = APIKeyPrefix + s
	prefix = raw[:len(APIKeyPrefix)+apiKeyDisplayHex]
	hash = HashToken(raw)
	return raw, prefix, hash, nil
}

// HashToken returns the hex-encoded SHA-256 digest of a raw credential.
// Refresh tokens and API keys are stored only in this form.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// HashPassword derives an argon2id hash of the password and encodes it in
// the standard $argon2id$... form.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// VerifyPassword reports whether password matches the encoded argon2id hash.
// Malformed hashes (including the empty hash of an OAuth-only account)
// never match.
func VerifyPassword(encoded, password string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}
	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
