package service

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	subscriptionpkg "github.com/stripe/stripe-go/v82/subscription"
)

// CheckoutParams carries everything needed to open a hosted checkout session.
type CheckoutParams struct {
	PriceID       string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	// Metadata is attached to both the session and the subscription it
	// creates; it is the only channel by which webhooks learn which user a
	// purchase belongs to.
	Metadata map[string]string
}

// BillingProvider abstracts the payment provider operations the billing flow
// performs. The production implementation is backed by the Stripe SDK.
type BillingProvider interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (sessionID, url string, err error)
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error
}

type stripeProvider struct{}

// NewStripeProvider configures the Stripe SDK with the account secret and
// returns the production BillingProvider.
func NewStripeProvider(secretKey string) BillingProvider {
	stripe.Key = secretKey
	return &stripeProvider{}
}

func (p *stripeProvider) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, string, error) {
	sessParams := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		Mode:   stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(params.PriceID), Quantity: stripe.Int64(1)},
		},
		CustomerEmail: stripe.String(params.CustomerEmail),
		SuccessURL:    stripe.String(params.SuccessURL),
		CancelURL:     stripe.String(params.CancelURL),
		Metadata:      params.Metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: params.Metadata,
		},
	}
	sess, err := checkoutsession.New(sessParams)
	if err != nil {
		return "", "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.ID, sess.URL, nil
}

func (p *stripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	sub, err := subscriptionpkg.Get(subscriptionID, &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch subscription %s: %w", subscriptionID, err)
	}
	return sub, nil
}

func (p *stripeProvider) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	_, err := subscriptionpkg.Update(subscriptionID, &stripe.SubscriptionParams{
		Params:            stripe.Params{Context: ctx},
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("flag subscription %s for cancellation: %w", subscriptionID, err)
	}
	return nil
}
