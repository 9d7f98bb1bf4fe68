package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
)

// IDTokenResolver verifies provider-signed ID tokens against the
// provider's JWKS and reads the identity from the email claim. The key
// set is cached and refreshed in the background.
type IDTokenResolver struct {
	jwksURL  string
	issuer   string
	audience string
	cache    *jwk.Cache
}

// NewIDTokenResolver registers jwksURL with a background-refreshing key
// cache. The caller's ctx bounds the refresh goroutine's lifetime.
func NewIDTokenResolver(ctx context.Context, jwksURL, issuer, audience string) (*IDTokenResolver, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, fmt.Errorf("register jwks %s: %w", jwksURL, err)
	}
	return &IDTokenResolver{jwksURL: jwksURL, issuer: issuer, audience: audience, cache: cache}, nil
}

func (r *IDTokenResolver) Resolve(ctx context.Context, credential string) (string, error) {
	set, err := r.cache.Get(ctx, r.jwksURL)
	if err != nil {
		return "", fmt.Errorf("jwks fetch: %w", err)
	}

	opts := []jwxjwt.ParseOption{
		jwxjwt.WithKeySet(set),
		jwxjwt.WithValidate(true),
	}
	if r.issuer != "" {
		opts = append(opts, jwxjwt.WithIssuer(r.issuer))
	}
	if r.audience != "" {
		opts = append(opts, jwxjwt.WithAudience(r.audience))
	}

	tok, err := jwxjwt.Parse([]byte(credential), opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	v, ok := tok.Get("email")
	email, _ := v.(string)
	if !ok || email == "" {
		return "", fmt.Errorf("%w: id_token has no email claim", ErrUnauthenticated)
	}
	return email, nil
}
