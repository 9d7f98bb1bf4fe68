package entitlements

import "time"

// Classification is the outcome of evaluating a request against a Record.
type Classification string

const (
	// AllowFree means the request is served against the free quota.
	AllowFree Classification = "allow_free"
	// AllowPaid means the request is served under an active paid window.
	AllowPaid Classification = "allow_paid"
	// RequirePayment means the request is refused and the caller must be
	// redirected into a checkout flow.
	RequirePayment Classification = "require_payment"
)

// Decision pairs a classification with the record state after the
// mutation that accompanies it. For RequirePayment the record is
// returned unchanged.
type Decision struct {
	Classification Classification
	Record         Record
}

// Allowed reports whether the underlying data call may proceed.
func (d Decision) Allowed() bool {
	return d.Classification == AllowFree || d.Classification == AllowPaid
}

// Decide classifies a request for the given record at the given instant
// and computes the accompanying record mutation. It is pure: the input
// record is not modified. Rules, in order:
//
//  1. RequestCount < FreeLimit: AllowFree, count incremented.
//  2. active paid window: AllowPaid, count reset to 0. The reset
//     deliberately re-opens the free allowance for when the window
//     lapses; this matches the billing product's behavior.
//  3. otherwise: RequirePayment, no mutation.
//
// Callers must commit the returned record through the store's atomic
// apply path; deciding on a stale read would let two concurrent
// requests share the same free slot.
func Decide(rec Record, now time.Time) Decision {
	switch {
	case rec.RequestCount < FreeLimit:
		rec.RequestCount++
		rec.LastActivityAt = now
		return Decision{Classification: AllowFree, Record: rec}
	case rec.PaidActive(now):
		rec.RequestCount = 0
		rec.LastActivityAt = now
		return Decision{Classification: AllowPaid, Record: rec}
	default:
		return Decision{Classification: RequirePayment, Record: rec}
	}
}
