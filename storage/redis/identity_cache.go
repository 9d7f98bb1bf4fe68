// Package redisstore provides Redis-backed caches shared across gateway
// instances.
package redisstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdentityCache caches credential -> identity lookups in Redis so that
// a fleet of gateway instances shares one userinfo result per token.
// Keys are SHA-256 hashes of the credential.
type IdentityCache struct {
	rdb   *redis.Client
	keyNS string
	ttl   time.Duration
}

func NewIdentityCache(rdb *redis.Client, keyPrefix string, ttl time.Duration) *IdentityCache {
	if keyPrefix == "" {
		keyPrefix = "metergate:identity:"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &IdentityCache{rdb: rdb, keyNS: keyPrefix, ttl: ttl}
}

func (c *IdentityCache) key(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return c.keyNS + hex.EncodeToString(sum[:])
}

func (c *IdentityCache) Put(ctx context.Context, credential, identity string) error {
	return c.rdb.Set(ctx, c.key(credential), identity, c.ttl).Err()
}

func (c *IdentityCache) Get(ctx context.Context, credential string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, c.key(credential)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
