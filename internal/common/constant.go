package common

// AccessTokenCookieName is the cookie that carries the signed access token.
const AccessTokenCookieName = "access_token"

// LegacyTokenCookieName is the pre-rename cookie still accepted for
// backward compatibility.
const LegacyTokenCookieName = "token"

// RefreshTokenCookieName carries the opaque refresh token, scoped to the
// refresh endpoint only.
const RefreshTokenCookieName = "refresh_token"

// APIKeyPrefix marks a presented credential as an API key rather than a
// signed access token.
const APIKeyPrefix = "sk_"
