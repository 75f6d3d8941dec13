package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"app/internal/identity"
	"app/internal/plan"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
)

// Sentinel errors the handler maps to specific 4xx responses.
var (
	ErrUnknownPlan       = errors.New("unknown plan")
	ErrUnsupportedPeriod = errors.New("unsupported billing period")
)

// errProviderRejected is the generic failure returned for provider errors.
// The underlying cause (including authentication failures against the
// provider) is logged server-side and never reaches the client.
var errProviderRejected = errors.New("payment provider rejected the request")

// CheckoutService turns a validated purchase request into a provider-hosted
// checkout session. No local state is written; the subscription row is
// created later by the webhook once the provider confirms payment.
type CheckoutService struct {
	catalog *plan.Catalog
	billing BillingProvider
	logger  zerolog.Logger
}

func NewCheckoutService(catalog *plan.Catalog, billing BillingProvider, logger zerolog.Logger) *CheckoutService {
	return &CheckoutService{
		catalog: catalog,
		billing: billing,
		logger:  logger.With().Str("service", "CheckoutService").Logger(),
	}
}

// CreateSession opens a checkout session for the given user and plan. origin
// is the web client's origin used to template the redirect URLs.
func (s *CheckoutService) CreateSession(ctx context.Context, user *identity.User, planID, billingPeriod, origin string) (string, string, error) {
	p, ok := s.catalog.ByID(planID)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownPlan, planID)
	}
	if billingPeriod != "" && billingPeriod != "monthly" {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedPeriod, billingPeriod)
	}

	sessionID, url, err := s.billing.CreateCheckoutSession(ctx, CheckoutParams{
		PriceID:       p.MonthlyPriceID,
		CustomerEmail: user.Email,
		SuccessURL:    origin + "/?checkout=success&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     origin + "/?checkout=cancelled",
		Metadata: map[string]string{
			"user_id":    user.ID,
			"plan_id":    p.ID,
			"product_id": p.ProductID,
		},
	})
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusUnauthorized {
			// Never surface this to the client: it would reveal that the
			// account secret key is invalid.
			s.logger.Error().Err(err).Msg("Provider authentication failed; check the configured secret key")
			return "", "", errProviderRejected
		}
		s.logger.Error().Err(err).Str("plan_id", planID).Msg("Failed to create checkout session")
		return "", "", errProviderRejected
	}
	return sessionID, url, nil
}
