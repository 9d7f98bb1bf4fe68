package identity

import (
	"context"
	"fmt"

	jwt "github.com/golang-jwt/jwt/v5"
)

// HS256Resolver verifies gateway-issued HS256 access tokens and reads
// the identity from the email claim.
type HS256Resolver struct {
	secret []byte
}

func NewHS256Resolver(secret string) *HS256Resolver {
	return &HS256Resolver{secret: []byte(secret)}
}

func (r *HS256Resolver) Resolve(_ context.Context, credential string) (string, error) {
	tok, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrUnauthenticated
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return "", fmt.Errorf("%w: token has no email claim", ErrUnauthenticated)
	}
	return email, nil
}
