// Package auth decides whether the caller may act on behalf of an owner.
package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/serroba/linkpulse/internal/shortener"
)

type tokenKey struct{}

// ContextWithToken stores the caller's bearer token.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the bearer token, or "" when none was sent.
func TokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tokenKey{}).(string); ok {
		return v
	}

	return ""
}

// AllowAll authorizes every owner. Used when no signing secret is configured.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, int64) error {
	return nil
}

// JWTAuthorizer accepts HS256 tokens whose subject is the owner id.
type JWTAuthorizer struct {
	secret []byte
}

func NewJWTAuthorizer(secret string) *JWTAuthorizer {
	return &JWTAuthorizer{secret: []byte(secret)}
}

// Authorize returns ErrUnauthorized when the token is missing or invalid and
// ErrForbidden when it was issued to a different owner.
func (a *JWTAuthorizer) Authorize(ctx context.Context, ownerID int64) error {
	raw := TokenFromContext(ctx)
	if raw == "" {
		return fmt.Errorf("%w: missing bearer token", shortener.ErrUnauthorized)
	}

	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("%w: %w", shortener.ErrUnauthorized, err)
	}

	if !token.Valid {
		return fmt.Errorf("%w: invalid token", shortener.ErrUnauthorized)
	}

	if claims.Subject != strconv.FormatInt(ownerID, 10) {
		return shortener.ErrForbidden
	}

	return nil
}

// Issue signs a token for ownerID valid for ttl.
func (a *JWTAuthorizer) Issue(ownerID int64, ttl time.Duration) (string, error) {
	claims := &jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(ownerID, 10),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}
