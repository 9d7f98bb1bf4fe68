package payments

import (
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func signedPayload(t *testing.T, payload string) ([]byte, string) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Payload, signed.Header
}

func TestVerifyNotificationCompletedCheckout(t *testing.T) {
	p := NewStripeProvider("sk_test_x", testWebhookSecret, "https://example.com/ok", "https://example.com/cancel")

	payload, sig := signedPayload(t, `{
		"id": "evt_123",
		"object": "event",
		"api_version": "2025-08-27.basil",
		"created": 1700000000,
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "object": "checkout.session", "client_reference_id": "user@example.com"}}
	}`)

	n, ok, err := p.VerifyNotification(payload, sig)
	if err != nil {
		t.Fatalf("VerifyNotification: %v", err)
	}
	if !ok {
		t.Fatal("completed checkout not surfaced")
	}
	if n.EventID != "evt_123" || n.Identity != "user@example.com" {
		t.Fatalf("notification = %+v", n)
	}
	if !n.PeriodStart.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Fatalf("period start = %v", n.PeriodStart)
	}
}

func TestVerifyNotificationIgnoresOtherEvents(t *testing.T) {
	p := NewStripeProvider("sk_test_x", testWebhookSecret, "", "")

	payload, sig := signedPayload(t, `{
		"id": "evt_124",
		"object": "event",
		"api_version": "2025-08-27.basil",
		"created": 1700000000,
		"type": "invoice.paid",
		"data": {"object": {}}
	}`)

	_, ok, err := p.VerifyNotification(payload, sig)
	if err != nil {
		t.Fatalf("VerifyNotification: %v", err)
	}
	if ok {
		t.Fatal("non-checkout event surfaced as notification")
	}
}

func TestVerifyNotificationBadSignature(t *testing.T) {
	p := NewStripeProvider("sk_test_x", testWebhookSecret, "", "")

	_, _, err := p.VerifyNotification([]byte(`{"id":"evt_125"}`), "t=1,v1=deadbeef")
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("err = %v, want ErrVerificationFailed", err)
	}
}

func TestVerifyNotificationMissingReference(t *testing.T) {
	p := NewStripeProvider("sk_test_x", testWebhookSecret, "", "")

	payload, sig := signedPayload(t, `{
		"id": "evt_126",
		"object": "event",
		"api_version": "2025-08-27.basil",
		"created": 1700000000,
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_2", "object": "checkout.session"}}
	}`)

	_, _, err := p.VerifyNotification(payload, sig)
	if err == nil {
		t.Fatal("expected error for session without client reference")
	}
}
