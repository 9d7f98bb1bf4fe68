package memorystore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// IdentityCache is an in-memory credential -> identity cache with TTL,
// used to keep repeat requests off the identity provider. Credentials
// are hashed before use as map keys so raw bearer tokens never sit in
// memory longer than the request.
type IdentityCache struct {
	mu     sync.Mutex
	ttl    time.Duration
	data   map[string]cachedIdentity
	closed chan struct{}
}

type cachedIdentity struct {
	identity string
	exp      time.Time
}

// NewIdentityCache creates a cache with the given TTL (default 5m) and
// starts a background sweep goroutine. Call Close when done.
func NewIdentityCache(ttl time.Duration) *IdentityCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &IdentityCache{ttl: ttl, data: make(map[string]cachedIdentity), closed: make(chan struct{})}
	go c.sweepLoop()
	return c
}

func hashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

func (c *IdentityCache) Put(_ context.Context, credential, identity string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[hashCredential(credential)] = cachedIdentity{identity: identity, exp: time.Now().Add(c.ttl)}
	return nil
}

func (c *IdentityCache) Get(_ context.Context, credential string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := hashCredential(credential)
	it, ok := c.data[k]
	if !ok {
		return "", false, nil
	}
	if time.Now().After(it.exp) {
		delete(c.data, k)
		return "", false, nil
	}
	return it.identity, true, nil
}

func (c *IdentityCache) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.closed:
			return
		}
	}
}

func (c *IdentityCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, v := range c.data {
		if now.After(v.exp) {
			delete(c.data, k)
		}
	}
}

// Close stops the background sweep goroutine.
func (c *IdentityCache) Close() error {
	close(c.closed)
	return nil
}
