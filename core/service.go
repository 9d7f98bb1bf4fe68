// Package core wires the gateway's collaborators into the two flows the
// HTTP adapter exposes: serving metered scan requests and absorbing
// payment notifications.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/open-rails/metergate/entitlements"
	"github.com/open-rails/metergate/identity"
	"github.com/open-rails/metergate/marketdata"
	"github.com/open-rails/metergate/payments"
	"github.com/open-rails/metergate/reconcile"
)

// Service runs the access-decision flow end to end. All fields except
// Jobs and Decisions are required.
type Service struct {
	Store      entitlements.Store
	Resolver   identity.Resolver
	Scanner    *marketdata.Client
	Payments   payments.Provider
	Reconciler *reconcile.Reconciler

	// Jobs, when set, moves reconciliation onto the background queue;
	// nil reconciles inline on the webhook request.
	Jobs reconcile.Enqueuer

	// Decisions receives one callback per classified request.
	Decisions entitlements.DecisionLogger

	// Log, when nil, falls back to the logrus standard logger.
	Log *logrus.Logger
}

func (s *Service) logger() *logrus.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}

// ScanResult is the outcome of one metered scan request.
type ScanResult struct {
	Classification entitlements.Classification
	Rows           []marketdata.Row
	// CheckoutURL is set only for RequirePayment.
	CheckoutURL string
}

// Scan resolves the caller, classifies the request against the
// entitlement store, and either proxies the scan upstream or mints a
// checkout session. Payload validation happens before the store is
// touched so malformed requests never consume quota. An upstream
// failure after an allow is surfaced as-is; the already-applied
// mutation stands.
func (s *Service) Scan(ctx context.Context, authorization string, req marketdata.ScanRequest) (ScanResult, error) {
	credential, err := identity.BearerFromHeader(authorization)
	if err != nil {
		return ScanResult{}, err
	}
	who, err := s.Resolver.Resolve(ctx, credential)
	if err != nil {
		return ScanResult{}, err
	}

	if err := req.Validate(); err != nil {
		return ScanResult{}, err
	}

	d, err := s.Store.Apply(ctx, who, credential, time.Now())
	if err != nil {
		return ScanResult{}, err
	}
	if s.Decisions != nil {
		s.Decisions.LogDecision(ctx, who, d)
	}

	if !d.Allowed() {
		url, err := s.Payments.CreateCheckoutSession(ctx, who)
		if err != nil {
			s.logger().WithError(err).WithField("identity", who).Error("checkout session creation failed")
			return ScanResult{}, fmt.Errorf("create checkout session: %w", err)
		}
		return ScanResult{Classification: d.Classification, CheckoutURL: url}, nil
	}

	rows, err := s.Scanner.Scan(ctx, req)
	if err != nil {
		s.logger().WithError(err).WithField("identity", who).Warn("upstream scan failed after allow")
		return ScanResult{}, err
	}
	return ScanResult{Classification: d.Classification, Rows: rows}, nil
}

// HandleNotification authenticates a raw webhook delivery and hands the
// resulting billing event to the reconciler, via the job queue when one
// is configured. Authentic events the gateway does not act on are
// acknowledged silently.
func (s *Service) HandleNotification(ctx context.Context, payload []byte, signature string) error {
	n, ok, err := s.Payments.VerifyNotification(payload, signature)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if s.Jobs != nil {
		_, err := s.Jobs.Insert(ctx, reconcile.Args{
			Identity:    n.Identity,
			EventID:     n.EventID,
			PeriodStart: n.PeriodStart,
		}, nil)
		if err != nil {
			return fmt.Errorf("enqueue reconciliation: %w", err)
		}
		return nil
	}

	_, err = s.Reconciler.Reconcile(ctx, n.Identity, n.EventID, n.PeriodStart)
	return err
}

// IsUnauthenticated reports whether err means the caller presented no
// resolvable identity.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, identity.ErrUnauthenticated)
}
