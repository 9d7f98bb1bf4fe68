// Package memorystore provides in-memory backends for tests and
// single-node development, mirroring the Postgres implementations.
package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/open-rails/metergate/entitlements"
)

// EntitlementStore is a mutex-guarded in-memory entitlements.Store.
// The single lock serializes the read-decide-write cycle per call, which
// also satisfies the per-identity atomicity requirement.
type EntitlementStore struct {
	mu      sync.Mutex
	records map[string]entitlements.Record
	events  map[string]time.Time // billing event id -> processed at
}

// NewEntitlementStore creates an empty store.
func NewEntitlementStore() *EntitlementStore {
	return &EntitlementStore{
		records: make(map[string]entitlements.Record),
		events:  make(map[string]time.Time),
	}
}

func (s *EntitlementStore) getOrCreateLocked(identity string) entitlements.Record {
	rec, ok := s.records[identity]
	if !ok {
		rec = entitlements.Record{Identity: identity}
		s.records[identity] = rec
	}
	return rec
}

func (s *EntitlementStore) GetOrCreate(_ context.Context, identity string) (entitlements.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(identity), nil
}

func (s *EntitlementStore) Apply(_ context.Context, identity, credential string, now time.Time) (entitlements.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getOrCreateLocked(identity)
	d := entitlements.Decide(rec, now)
	if d.Allowed() {
		d.Record.CredentialSnapshot = credential
		s.records[identity] = d.Record
	}
	return d, nil
}

func (s *EntitlementStore) ExtendPaidWindow(_ context.Context, identity, eventID string, expiry time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.events[eventID]; seen {
		return false, nil
	}
	s.events[eventID] = time.Now()

	rec := s.getOrCreateLocked(identity)
	rec.PaidUntil = &expiry
	s.records[identity] = rec
	return true, nil
}

func (s *EntitlementStore) PruneBillingEvents(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, at := range s.events {
		if at.Before(before) {
			delete(s.events, id)
			n++
		}
	}
	return n, nil
}
