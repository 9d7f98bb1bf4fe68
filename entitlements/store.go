package entitlements

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStoreUnavailable wraps transient storage failures. No decision is
// made on a failed read and no partial mutation is ever visible.
var ErrStoreUnavailable = errors.New("entitlement store unavailable")

// StoreErr tags err as a transient store failure.
func StoreErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// Store is the durable map from identity to Record. Implementations must
// serialize operations per identity; cross-identity operations need no
// coordination.
type Store interface {
	// GetOrCreate returns the record for identity, creating it with
	// RequestCount=0 and no paid window on first sight.
	GetOrCreate(ctx context.Context, identity string) (Record, error)

	// Apply runs the read-decide-write cycle atomically for one identity:
	// it loads (or creates) the record under a per-key lock, classifies
	// via Decide, persists the accompanying mutation, and records the
	// bearer credential snapshot. Two concurrent calls for the same
	// identity must not both observe the same RequestCount.
	Apply(ctx context.Context, identity, credential string, now time.Time) (Decision, error)

	// ExtendPaidWindow sets PaidUntil = expiry for identity, creating the
	// record if needed. The eventID dedupes webhook redelivery: a second
	// call with an already-processed eventID is a no-op and returns
	// applied=false.
	ExtendPaidWindow(ctx context.Context, identity, eventID string, expiry time.Time) (applied bool, err error)

	// PruneBillingEvents drops processed billing-event markers older than
	// before, bounding the dedup set. Returns the number removed.
	PruneBillingEvents(ctx context.Context, before time.Time) (int64, error)
}
