package memorystore

import (
	"context"
	"testing"
	"time"
)

func TestIdentityCacheRoundTrip(t *testing.T) {
	c := NewIdentityCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	if err := c.Put(ctx, "bearer-abc", "alice@example.com"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := c.Get(ctx, "bearer-abc")
	if err != nil || !ok {
		t.Fatalf("Get = (%v, %v), want hit", ok, err)
	}
	if got != "alice@example.com" {
		t.Fatalf("Get = %q, want alice@example.com", got)
	}

	if _, ok, _ := c.Get(ctx, "bearer-other"); ok {
		t.Fatal("unknown credential reported as cached")
	}
}

func TestIdentityCacheExpiry(t *testing.T) {
	c := NewIdentityCache(10 * time.Millisecond)
	defer c.Close()
	ctx := context.Background()

	if err := c.Put(ctx, "bearer-abc", "alice@example.com"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "bearer-abc"); ok {
		t.Fatal("expired entry still served")
	}
}

func TestIdentityCacheClose(t *testing.T) {
	c := NewIdentityCache(time.Minute)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Lookups after Close still work; only the sweeper stops.
	if _, ok, err := c.Get(context.Background(), "bearer-abc"); ok || err != nil {
		t.Fatalf("Get after Close = (%v, %v)", ok, err)
	}
}
