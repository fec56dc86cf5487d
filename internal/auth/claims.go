package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// defaultTokenTTL applies when IssueToken is given a non-positive TTL.
const defaultTokenTTL = 60 * time.Minute

// CustomClaims extends JWT standard claims with the listener role.
type CustomClaims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// IssueToken creates a signed bearer token for subject, signed with the
// listener key.
func IssueToken(subject string, role Role, key string, ttl time.Duration) (token string, expires time.Time, err error) {
	if key == "" {
		return "", time.Time{}, ErrKeyRequired
	}
	if !IsValidRole(role) {
		return "", time.Time{}, fmt.Errorf("%w: unknown role %q", ErrForbidden, role)
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	now := time.Now()
	expires = now.Add(ttl)
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken validates and parses a bearer token, returning the custom claims.
// It checks the signature, expiry and required fields.
func ParseToken(tokenString, key string) (*CustomClaims, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(key), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if !IsValidRole(claims.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}

	return claims, nil
}
