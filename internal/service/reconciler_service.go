package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/plan"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
)

// ErrMissingMetadata marks a checkout-completion event that lacks the
// metadata required to attribute the purchase to a user. It is a hard
// failure: the endpoint answers 500 and the provider redelivers the event.
var ErrMissingMetadata = errors.New("checkout session missing required metadata")

// ReconcilerService applies verified payment provider events to the
// subscription record. Every write is keyed on the provider subscription id,
// so re-applying a redelivered event recomputes the same stored state.
type ReconcilerService struct {
	catalog *plan.Catalog
	billing BillingProvider
	repo    repository.SubscriptionRepository
	logger  zerolog.Logger
}

func NewReconcilerService(catalog *plan.Catalog, billing BillingProvider, repo repository.SubscriptionRepository, logger zerolog.Logger) *ReconcilerService {
	return &ReconcilerService{
		catalog: catalog,
		billing: billing,
		repo:    repo,
		logger:  logger.With().Str("service", "ReconcilerService").Logger(),
	}
}

// Process dispatches one verified provider event to its handler. Event types
// without a handler are acknowledged and logged.
func (s *ReconcilerService) Process(ctx context.Context, event *stripe.Event) error {
	s.logger.Info().Str("event_type", string(event.Type)).Str("event_id", event.ID).Msg("Webhook event received")

	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.updated":
		return s.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_failed":
		return s.handleInvoicePaymentFailed(ctx, event)
	case "invoice.payment_succeeded":
		// The subscription row is maintained by the subscription events;
		// reserved for payment notification hooks.
		return nil
	default:
		s.logger.Info().Str("event_type", string(event.Type)).Msg("Ignoring unhandled webhook event")
		return nil
	}
}

// handleCheckoutCompleted creates (or re-creates, on redelivery) the
// subscription row for a first successful payment. The webhook payload is a
// checkout session, not the subscription; the authoritative status, period
// and price are only available by re-fetching the subscription object.
func (s *ReconcilerService) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return fmt.Errorf("decode checkout session payload: %w", err)
	}

	userID := cs.Metadata["user_id"]
	planID := cs.Metadata["plan_id"]
	productID := cs.Metadata["product_id"]
	if userID == "" || planID == "" || productID == "" {
		return fmt.Errorf("%w: user_id=%q plan_id=%q product_id=%q", ErrMissingMetadata, userID, planID, productID)
	}
	if cs.Subscription == nil || cs.Subscription.ID == "" {
		return fmt.Errorf("%w: no subscription id on session %s", ErrMissingMetadata, cs.ID)
	}
	subID := cs.Subscription.ID

	sub, err := s.billing.GetSubscription(ctx, subID)
	if err != nil {
		return fmt.Errorf("fetch subscription %s after checkout: %w", subID, err)
	}

	rec := &model.Subscription{
		UserID:            userID,
		SubscriptionID:    subID,
		PlanID:            planID,
		PlanTier:          s.catalog.TierForProduct(productID),
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		rec.CustomerID = sub.Customer.ID
	} else if cs.Customer != nil {
		rec.CustomerID = cs.Customer.ID
	}
	if item := firstItem(sub); item != nil {
		if item.Price != nil {
			rec.PriceID = item.Price.ID
		}
		rec.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0)
		rec.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0)
	}

	if _, err := s.repo.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("persist subscription %s for user %s: %w", subID, userID, err)
	}
	s.logger.Info().Str("user_id", userID).Str("subscription_id", subID).Str("plan_tier", rec.PlanTier).Msg("Subscription created from checkout")
	return nil
}

// handleSubscriptionUpdated refreshes status, billing window and the
// cancel-at-period-end flag of the matching row. Events without user_id
// metadata can legitimately arrive (subscriptions not created through our
// checkout), so they degrade to a logged no-op instead of an error.
func (s *ReconcilerService) handleSubscriptionUpdated(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("decode subscription payload: %w", err)
	}
	if sub.Metadata["user_id"] == "" {
		s.logger.Warn().Str("subscription_id", sub.ID).Msg("Subscription update without user_id metadata; skipping")
		return nil
	}

	// A delayed update must not overwrite state written by a later event
	// that was delivered first.
	if event.Created > 0 {
		existing, err := s.repo.GetBySubscription(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("load subscription %s for staleness check: %w", sub.ID, err)
		}
		if existing != nil && time.Unix(event.Created, 0).Before(existing.UpdatedAt) {
			s.logger.Info().Str("subscription_id", sub.ID).Int64("event_created", event.Created).Msg("Discarding stale subscription update")
			return nil
		}
	}

	var priceID *string
	var periodStart, periodEnd *time.Time
	if item := firstItem(&sub); item != nil {
		if item.Price != nil && item.Price.ID != "" {
			priceID = &item.Price.ID
		}
		start := time.Unix(item.CurrentPeriodStart, 0)
		end := time.Unix(item.CurrentPeriodEnd, 0)
		periodStart, periodEnd = &start, &end
	}
	cancel := sub.CancelAtPeriodEnd

	if err := s.repo.UpdateFromProvider(ctx, sub.ID, string(sub.Status), priceID, periodStart, periodEnd, &cancel); err != nil {
		return fmt.Errorf("apply subscription update %s: %w", sub.ID, err)
	}
	return nil
}

func (s *ReconcilerService) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("decode subscription payload: %w", err)
	}
	if sub.ID == "" {
		s.logger.Warn().Msg("Subscription deletion without subscription id; skipping")
		return nil
	}
	if err := s.repo.UpdateStatus(ctx, sub.ID, model.StatusCanceled, nil, nil); err != nil {
		return fmt.Errorf("mark subscription %s canceled: %w", sub.ID, err)
	}
	s.logger.Info().Str("subscription_id", sub.ID).Msg("Subscription canceled by provider")
	return nil
}

func (s *ReconcilerService) handleInvoicePaymentFailed(ctx context.Context, event *stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("decode invoice payload: %w", err)
	}

	subID := invoiceSubscriptionID(&invoice)
	if subID == "" {
		// Likely a one-time invoice; nothing to reconcile.
		s.logger.Info().Str("invoice_id", invoice.ID).Msg("Failed invoice has no subscription; skipping")
		return nil
	}
	if err := s.repo.UpdateStatus(ctx, subID, model.StatusPastDue, nil, nil); err != nil {
		return fmt.Errorf("mark subscription %s past_due: %w", subID, err)
	}
	s.logger.Warn().Str("subscription_id", subID).Str("invoice_id", invoice.ID).Msg("Subscription marked past_due after failed payment")
	return nil
}

func firstItem(sub *stripe.Subscription) *stripe.SubscriptionItem {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	return sub.Items.Data[0]
}

func invoiceSubscriptionID(invoice *stripe.Invoice) string {
	if invoice.Lines == nil {
		return ""
	}
	for _, line := range invoice.Lines.Data {
		if line.Subscription != nil && line.Subscription.ID != "" {
			return line.Subscription.ID
		}
	}
	return ""
}
