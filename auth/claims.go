package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the subset of registered JWT claims shown to users.
type TokenClaims struct {
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// InspectClaims decodes the registered claims of a JWT access token without verifying its
// signature. It is meant for display only; opaque tokens return an error.
func InspectClaims(token string) (TokenClaims, error) {
	raw := StripBearer(token)
	if raw == "" {
		return TokenClaims{}, fmt.Errorf("no token to inspect")
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return TokenClaims{}, fmt.Errorf("token is not a JWT: %w", err)
	}

	out := TokenClaims{Subject: claims.Subject, Issuer: claims.Issuer}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
