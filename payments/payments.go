// Package payments abstracts the external payment processor: minting
// checkout sessions for blocked callers and verifying asynchronous
// payment-completion notifications.
package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrVerificationFailed means a notification's signature or authenticity
// check failed. The notification is dropped with no state change.
var ErrVerificationFailed = errors.New("payment notification verification failed")

// Notification is a verified payment-completion event.
type Notification struct {
	// EventID is the processor's event identifier, used as the
	// reconciliation idempotency key.
	EventID string
	// Identity is the paying caller (from the session's client reference).
	Identity string
	// PeriodStart anchors the paid window; the reconciler extends it by
	// one billing period from here.
	PeriodStart time.Time
}

// Provider is the payment processor seam.
type Provider interface {
	// CreateCheckoutSession mints a new checkout session tied to the
	// identity and returns the URL the caller is redirected to.
	CreateCheckoutSession(ctx context.Context, identity string) (string, error)

	// VerifyNotification authenticates a raw webhook delivery. ok is
	// false for authentic events the gateway does not act on.
	VerifyNotification(payload []byte, signature string) (n Notification, ok bool, err error)
}

// MockProvider is a test double that records calls and returns
// configurable results.
type MockProvider struct {
	mu sync.Mutex

	// Sessions collects identities checkout sessions were created for.
	Sessions []string
	// Notifications maps raw payload -> canned result.
	Notifications map[string]Notification

	CreateSessionErr error
	VerifyErr        error

	nextSeq int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{Notifications: make(map[string]Notification)}
}

func (m *MockProvider) CreateCheckoutSession(_ context.Context, identity string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateSessionErr != nil {
		return "", m.CreateSessionErr
	}
	m.nextSeq++
	m.Sessions = append(m.Sessions, identity)
	return fmt.Sprintf("https://checkout.example.com/mock_%d", m.nextSeq), nil
}

func (m *MockProvider) VerifyNotification(payload []byte, _ string) (Notification, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.VerifyErr != nil {
		return Notification{}, false, m.VerifyErr
	}
	n, ok := m.Notifications[string(payload)]
	return n, ok, nil
}
