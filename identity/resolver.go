// Package identity resolves a bearer credential to the stable identity
// (verified email) under which entitlement state is tracked.
package identity

import (
	"context"
	"errors"
	"strings"
)

// ErrUnauthenticated means no identity could be resolved from the
// request. The entitlement store is never touched in that case.
var ErrUnauthenticated = errors.New("unauthenticated")

// Resolver maps a bearer credential to an identity.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (string, error)
}

// BearerFromHeader extracts the bearer token from an Authorization
// header value. Returns ErrUnauthenticated when the header is missing
// or not a bearer scheme.
func BearerFromHeader(header string) (string, error) {
	if header == "" {
		return "", ErrUnauthenticated
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrUnauthenticated
	}
	return strings.TrimSpace(parts[1]), nil
}

// Cache is the credential -> identity cache consulted before hitting
// the identity provider. Implementations live in storage/memory and
// storage/redis.
type Cache interface {
	Get(ctx context.Context, credential string) (identity string, ok bool, err error)
	Put(ctx context.Context, credential, identity string) error
}

// Cached wraps a Resolver with a Cache. Cache failures are treated as
// misses; the provider remains the source of truth.
type Cached struct {
	Inner Resolver
	Cache Cache
}

func (c Cached) Resolve(ctx context.Context, credential string) (string, error) {
	if c.Cache != nil {
		if id, ok, err := c.Cache.Get(ctx, credential); err == nil && ok {
			return id, nil
		}
	}
	id, err := c.Inner.Resolve(ctx, credential)
	if err != nil {
		return "", err
	}
	if c.Cache != nil {
		_ = c.Cache.Put(ctx, credential, id)
	}
	return id, nil
}
