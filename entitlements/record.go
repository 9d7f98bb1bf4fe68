// Package entitlements holds the per-identity metering state and the
// decision rules that classify inbound requests against it.
package entitlements

import "time"

// FreeLimit is the number of requests an identity may make without an
// active paid window. The comparison is strict: counts 0..FreeLimit-1
// are servable for free.
const FreeLimit = 3

// Record is the durable entitlement state for one identity.
// Exactly one Record exists per identity; creation is idempotent.
type Record struct {
	// Identity is the stable key (verified email), immutable once created.
	Identity string `json:"identity"`

	// RequestCount bounds the free tier. It only ever increments or is
	// reset to 0; it is never decremented.
	RequestCount int `json:"request_count"`

	// LastActivityAt is the time of the most recent accepted request or
	// counter reset.
	LastActivityAt time.Time `json:"last_activity_at"`

	// PaidUntil, when set and in the future, marks an active paid window.
	// It is always an absolute expiry, never an increment on a prior value.
	PaidUntil *time.Time `json:"paid_until,omitempty"`

	// CredentialSnapshot is the last bearer credential seen for this
	// identity. Kept for observability only; never consulted for
	// authorization.
	CredentialSnapshot string `json:"credential_snapshot,omitempty"`
}

// PaidActive reports whether the record holds an active paid window at
// the given instant. A PaidUntil exactly equal to now is not active.
func (r Record) PaidActive(now time.Time) bool {
	return r.PaidUntil != nil && r.PaidUntil.After(now)
}
