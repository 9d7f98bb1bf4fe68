// Package redislimiter is the Redis-backed counterpart of
// memorylimiter, for fleets where abuse limits must be shared across
// gateway instances.
package redislimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limit defines window and max count for a bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

// Limiter is a Redis-backed sliding window limiter using ZSETs.
type Limiter struct {
	rdb    *redis.Client
	keyNS  string
	limits map[string]Limit
}

func New(rdb *redis.Client, limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = map[string]Limit{}
	}
	return &Limiter{rdb: rdb, keyNS: "metergate:rl:", limits: limits}
}

func (l *Limiter) get(bucket string) Limit {
	if v, ok := l.limits[bucket]; ok {
		return v
	}
	if v, ok := l.limits["default"]; ok {
		return v
	}
	return Limit{Limit: 60, Window: time.Minute}
}

// Allow reports whether one more request in bucket for key fits the
// window. The add+trim+count runs in one transactional pipeline; an
// over-limit add is removed again so denied attempts do not consume
// the window.
func (l *Limiter) Allow(ctx context.Context, bucket, key string) (bool, error) {
	if l == nil || l.rdb == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("bucket and key required")
	}
	lim := l.get(bucket)
	now := time.Now().UnixNano() / 1e6 // ms
	start := now - lim.Window.Milliseconds()
	limitKey := l.keyNS + bucket + ":" + key

	pipe := l.rdb.TxPipeline()
	pipe.ZAdd(ctx, limitKey, redis.Z{Score: float64(now), Member: now})
	pipe.ZRemRangeByScore(ctx, limitKey, "0", fmt.Sprintf("%d", start))
	countCmd := pipe.ZCard(ctx, limitKey)
	pipe.Expire(ctx, limitKey, lim.Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	count, err := countCmd.Result()
	if err != nil {
		return false, err
	}
	if count > int64(lim.Limit) {
		l.rdb.ZRem(ctx, limitKey, now)
		return false, nil
	}
	return true, nil
}
