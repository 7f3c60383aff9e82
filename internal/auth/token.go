package auth

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scopes granted by state store tokens.
const (
	ScopeStatesRead = "states:read"
)

// MinSecretLength is the shortest accepted HMAC secret.
const MinSecretLength = 16

// DefaultTTL is used when IssueToken is given a non-positive TTL.
const DefaultTTL = 15 * time.Minute

// Claims are the JWT claims carried by API bearer tokens.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// HasScope reports whether the space-separated scope claim contains scope.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(strings.Fields(c.Scope), scope)
}

// IssueToken creates an HS256 token for subject with the given scopes.
//
// Parameters:
//   - subject: Caller identity recorded in "sub"
//   - secret: HMAC secret, at least MinSecretLength bytes
//   - ttl: Lifetime; non-positive uses DefaultTTL
//   - scopes: Granted scopes; none means ScopeStatesRead
//
// Returns:
//   - string: Signed token
//   - error: ErrSecretTooShort or a signing failure
func IssueToken(subject, secret string, ttl time.Duration, scopes ...string) (string, error) {
	if len(secret) < MinSecretLength {
		return "", ErrSecretTooShort
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if len(scopes) == 0 {
		scopes = []string{ScopeStatesRead}
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Scope: strings.Join(scopes, " "),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates signature, expiry and subject, and returns the claims.
// Only HS256 is accepted.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return claims, nil
}

// Authorize parses a token and checks it grants scope.
func Authorize(tokenString, secret, scope string) (*Claims, error) {
	claims, err := ParseToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if !claims.HasScope(scope) {
		return nil, fmt.Errorf("%w: %s required", ErrInsufficientScope, scope)
	}
	return claims, nil
}
