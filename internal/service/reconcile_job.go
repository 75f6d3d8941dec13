package service

import (
	"context"
	"time"

	"app/internal/repository"

	"github.com/rs/zerolog"
)

// ReconcileJob periodically re-fetches provider state for subscription rows
// that have not been touched by a webhook within the staleness interval. It
// backstops the webhook path: the design otherwise relies on the provider's
// redelivery to repair missed events.
type ReconcileJob struct {
	repo       repository.SubscriptionRepository
	billing    BillingProvider
	interval   time.Duration
	staleAfter time.Duration
	batchSize  int
	logger     zerolog.Logger
}

func NewReconcileJob(repo repository.SubscriptionRepository, billing BillingProvider, interval, staleAfter time.Duration, batchSize int, logger zerolog.Logger) *ReconcileJob {
	return &ReconcileJob{
		repo:       repo,
		billing:    billing,
		interval:   interval,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		logger:     logger.With().Str("service", "ReconcileJob").Logger(),
	}
}

// Run blocks until ctx is canceled, reconciling one batch per tick.
func (j *ReconcileJob) Run(ctx context.Context) {
	j.logger.Info().Dur("interval", j.interval).Dur("stale_after", j.staleAfter).Msg("Starting subscription reconciliation job")
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("Shutting down subscription reconciliation job")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *ReconcileJob) runOnce(ctx context.Context) {
	cutoff := time.Now().Add(-j.staleAfter)
	rows, err := j.repo.ListStale(ctx, cutoff, j.batchSize)
	if err != nil {
		j.logger.Error().Err(err).Msg("Failed to list stale subscriptions")
		return
	}
	if len(rows) == 0 {
		return
	}
	j.logger.Info().Int("count", len(rows)).Msg("Reconciling stale subscriptions against provider")

	for _, row := range rows {
		if row.SubscriptionID == "" {
			continue
		}
		sub, err := j.billing.GetSubscription(ctx, row.SubscriptionID)
		if err != nil {
			j.logger.Warn().Err(err).Str("subscription_id", row.SubscriptionID).Msg("Failed to re-fetch subscription from provider")
			continue
		}

		var priceID *string
		var periodStart, periodEnd *time.Time
		if item := firstItem(sub); item != nil {
			if item.Price != nil && item.Price.ID != "" {
				priceID = &item.Price.ID
			}
			start := time.Unix(item.CurrentPeriodStart, 0)
			end := time.Unix(item.CurrentPeriodEnd, 0)
			periodStart, periodEnd = &start, &end
		}
		cancel := sub.CancelAtPeriodEnd

		if err := j.repo.UpdateFromProvider(ctx, row.SubscriptionID, string(sub.Status), priceID, periodStart, periodEnd, &cancel); err != nil {
			j.logger.Error().Err(err).Str("subscription_id", row.SubscriptionID).Msg("Failed to apply reconciled provider state")
			continue
		}
	}
}
