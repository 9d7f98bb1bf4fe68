// Package reconcile applies verified payment-completion notifications
// to the entitlement store. It runs on its own delivery path and never
// blocks the request-serving side.
package reconcile

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/open-rails/metergate/entitlements"
)

// BillingPeriod extends a paid window by one calendar month from the
// notification's period start.
func BillingPeriod(periodStart time.Time) time.Time {
	return periodStart.AddDate(0, 1, 0)
}

// Reconciler extends paid windows from billing events.
type Reconciler struct {
	store entitlements.Store
	log   *logrus.Logger
}

func New(store entitlements.Store, log *logrus.Logger) *Reconciler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reconciler{store: store, log: log}
}

// Reconcile sets the identity's paid window to periodStart + 1 month.
// Processing is idempotent under at-least-once delivery: the store
// keys processed events by eventID, so a redelivered event leaves
// PaidUntil unchanged. Returns the expiry in effect for the event.
func (r *Reconciler) Reconcile(ctx context.Context, identity, eventID string, periodStart time.Time) (time.Time, error) {
	expiry := BillingPeriod(periodStart)
	applied, err := r.store.ExtendPaidWindow(ctx, identity, eventID, expiry)
	if err != nil {
		return time.Time{}, err
	}
	r.log.WithFields(logrus.Fields{
		"identity":   identity,
		"event_id":   eventID,
		"paid_until": expiry,
		"applied":    applied,
	}).Info("billing event reconciled")
	return expiry, nil
}

// PruneProcessedEvents drops event markers older than retention. Run
// from the maintenance schedule; keeps the dedup set bounded while
// staying far past any plausible redelivery horizon.
func (r *Reconciler) PruneProcessedEvents(ctx context.Context, retention time.Duration) error {
	n, err := r.store.PruneBillingEvents(ctx, time.Now().Add(-retention))
	if err != nil {
		return err
	}
	if n > 0 {
		r.log.WithField("pruned", n).Info("pruned processed billing events")
	}
	return nil
}
