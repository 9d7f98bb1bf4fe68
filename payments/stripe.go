package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Price of one month of API access, in cents.
const accessPriceCents = 499

// StripeProvider implements Provider on the Stripe API: one-off card
// checkout sessions, and checkout.session.completed webhooks.
type StripeProvider struct {
	webhookSecret string
	successURL    string
	cancelURL     string
}

// NewStripeProvider configures the global Stripe client with apiKey.
func NewStripeProvider(apiKey, webhookSecret, successURL, cancelURL string) *StripeProvider {
	stripe.Key = apiKey
	return &StripeProvider{
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
	}
}

// CreateCheckoutSession mints a card checkout session for one billing
// period of access. The identity rides along as the client reference so
// the completion webhook can find the entitlement record.
func (p *StripeProvider) CreateCheckoutSession(_ context.Context, identity string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("API Request"),
					},
					UnitAmount: stripe.Int64(accessPriceCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(p.successURL),
		CancelURL:         stripe.String(p.cancelURL),
		ClientReferenceID: stripe.String(identity),
	}
	s, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("payments: create checkout session: %w", err)
	}
	return s.URL, nil
}

// VerifyNotification checks the Stripe signature and extracts a
// Notification from checkout.session.completed events. Other event
// types verify fine but return ok=false.
func (p *StripeProvider) VerifyNotification(payload []byte, signature string) (Notification, bool, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return Notification{}, false, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	if event.Type != "checkout.session.completed" {
		return Notification{}, false, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return Notification{}, false, fmt.Errorf("payments: parse checkout session: %w", err)
	}
	if sess.ClientReferenceID == "" {
		return Notification{}, false, fmt.Errorf("payments: completed session %s has no client reference", event.ID)
	}

	return Notification{
		EventID:     event.ID,
		Identity:    sess.ClientReferenceID,
		PeriodStart: time.Unix(event.Created, 0).UTC(),
	}, true, nil
}
