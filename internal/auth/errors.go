package auth

import "errors"

// Sentinel errors for token handling.
var (
	// ErrTokenInvalid covers bad signatures, expiry and missing claims.
	ErrTokenInvalid = errors.New("auth: token invalid")

	// ErrInsufficientScope means the token is valid but lacks the required scope.
	ErrInsufficientScope = errors.New("auth: insufficient scope")

	// ErrSecretTooShort is returned when signing with a weak secret.
	ErrSecretTooShort = errors.New("auth: secret too short")
)
