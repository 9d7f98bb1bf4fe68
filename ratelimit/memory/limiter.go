// Package memorylimiter is a single-node sliding-window rate limiter,
// the fallback when Redis is not configured. Entitlement metering is
// not done here; these buckets only guard abuse-prone endpoints
// (webhook, oauth) ahead of any real work.
package memorylimiter

import (
	"fmt"
	"sync"
	"time"
)

// Limit defines window and max count for a bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

type bucketState struct {
	// timestamps holds request times in Unix ms, newest last.
	timestamps []int64
}

// Limiter is an in-memory sliding-window rate limiter.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]Limit
	buckets map[string]*bucketState
}

// New constructs an in-memory limiter with the provided per-bucket
// limits. A "default" entry covers unnamed buckets.
func New(limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = map[string]Limit{}
	}
	return &Limiter{
		limits:  limits,
		buckets: make(map[string]*bucketState),
	}
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
// sliding window. Expired entries are pruned on each call and empty
// buckets dropped to bound memory.
func (l *Limiter) Allow(bucket, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("bucket and key required")
	}

	lim := l.get(bucket)
	nowMs := time.Now().UnixNano() / 1e6
	windowStart := nowMs - lim.Window.Milliseconds()
	limitKey := bucket + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[limitKey]
	if !ok {
		b = &bucketState{}
		l.buckets[limitKey] = b
	}

	ts := b.timestamps
	pruneIdx := 0
	for pruneIdx < len(ts) && ts[pruneIdx] < windowStart {
		pruneIdx++
	}
	if pruneIdx > 0 {
		ts = ts[pruneIdx:]
	}

	if len(ts) >= lim.Limit {
		// Deny without recording this attempt.
		b.timestamps = ts
		if len(ts) == 0 {
			delete(l.buckets, limitKey)
		}
		return false, nil
	}

	ts = append(ts, nowMs)
	b.timestamps = ts
	return true, nil
}
