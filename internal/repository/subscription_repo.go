package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionRepository is the single choke point for reading and writing
// the subscription row. One row exists per user; provider-event writes
// locate it by subscription_id, user-initiated writes by user_id.
type SubscriptionRepository interface {
	// GetByUser returns the user's subscription, or nil when none exists.
	GetByUser(ctx context.Context, userID string) (*model.Subscription, error)
	// GetBySubscription returns the row matching a provider subscription id,
	// or nil when none exists.
	GetBySubscription(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	// Upsert inserts or updates the row, resolving conflicts on
	// subscription_id, and returns the resulting row.
	Upsert(ctx context.Context, sub *model.Subscription) (*model.Subscription, error)
	// UpdateStatus sets the status of the row matching subscriptionID,
	// optionally moving the billing window. updated_at is always stamped.
	UpdateStatus(ctx context.Context, subscriptionID, status string, periodStart, periodEnd *time.Time) error
	// UpdateFromProvider refreshes the provider-owned fields of the row
	// matching subscriptionID. Nil pointers leave the stored value untouched.
	UpdateFromProvider(ctx context.Context, subscriptionID, status string, priceID *string, periodStart, periodEnd *time.Time, cancelAtPeriodEnd *bool) error
	// Cancel marks the user's subscription canceled with the
	// cancel-at-period-end flag set. This is the one writer keyed by
	// user_id, for user-initiated cancellation.
	Cancel(ctx context.Context, userID string) error
	// HasActiveSubscription reports whether the user's subscription grants
	// access right now.
	HasActiveSubscription(ctx context.Context, userID string) (bool, error)
	// ListStale returns rows whose updated_at is older than the cutoff,
	// oldest first.
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]model.Subscription, error)
	// Ping runs a trivial query against the subscription table.
	Ping(ctx context.Context) error
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `
        user_id, customer_id, subscription_id, plan_id, plan_tier, price_id,
        status, current_period_start, current_period_end, cancel_at_period_end,
        created_at, updated_at`

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	err := row.Scan(
		&s.UserID,
		&s.CustomerID,
		&s.SubscriptionID,
		&s.PlanID,
		&s.PlanTier,
		&s.PriceID,
		&s.Status,
		&s.CurrentPeriodStart,
		&s.CurrentPeriodEnd,
		&s.CancelAtPeriodEnd,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *subscriptionRepo) GetByUser(ctx context.Context, userID string) (*model.Subscription, error) {
	q := `SELECT` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`
	s, err := scanSubscription(r.pool.QueryRow(ctx, q, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch subscription for user %s: %w", userID, err)
	}
	return s, nil
}

func (r *subscriptionRepo) GetBySubscription(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	q := `SELECT` + subscriptionColumns + ` FROM subscriptions WHERE subscription_id = $1`
	s, err := scanSubscription(r.pool.QueryRow(ctx, q, subscriptionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch subscription %s: %w", subscriptionID, err)
	}
	return s, nil
}

func (r *subscriptionRepo) Upsert(ctx context.Context, sub *model.Subscription) (*model.Subscription, error) {
	q := `
        INSERT INTO subscriptions (user_id, customer_id, subscription_id, plan_id, plan_tier, price_id,
                                   status, current_period_start, current_period_end, cancel_at_period_end,
                                   created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
        ON CONFLICT (subscription_id) DO UPDATE
        SET customer_id          = EXCLUDED.customer_id,
            plan_id              = EXCLUDED.plan_id,
            plan_tier            = EXCLUDED.plan_tier,
            price_id             = EXCLUDED.price_id,
            status               = EXCLUDED.status,
            current_period_start = EXCLUDED.current_period_start,
            current_period_end   = EXCLUDED.current_period_end,
            cancel_at_period_end = EXCLUDED.cancel_at_period_end,
            updated_at           = NOW()
        RETURNING` + subscriptionColumns
	row := r.pool.QueryRow(ctx, q,
		sub.UserID,
		sub.CustomerID,
		sub.SubscriptionID,
		sub.PlanID,
		sub.PlanTier,
		sub.PriceID,
		sub.Status,
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
	)
	s, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("upsert subscription %s: %w", sub.SubscriptionID, err)
	}
	return s, nil
}

func (r *subscriptionRepo) UpdateStatus(ctx context.Context, subscriptionID, status string, periodStart, periodEnd *time.Time) error {
	const q = `
        UPDATE subscriptions
        SET status               = $2,
            current_period_start = COALESCE($3, current_period_start),
            current_period_end   = COALESCE($4, current_period_end),
            updated_at           = NOW()
        WHERE subscription_id = $1
    `
	if _, err := r.pool.Exec(ctx, q, subscriptionID, status, periodStart, periodEnd); err != nil {
		return fmt.Errorf("update status of subscription %s: %w", subscriptionID, err)
	}
	return nil
}

func (r *subscriptionRepo) UpdateFromProvider(ctx context.Context, subscriptionID, status string, priceID *string, periodStart, periodEnd *time.Time, cancelAtPeriodEnd *bool) error {
	const q = `
        UPDATE subscriptions
        SET status               = $2,
            price_id             = COALESCE($3, price_id),
            current_period_start = COALESCE($4, current_period_start),
            current_period_end   = COALESCE($5, current_period_end),
            cancel_at_period_end = COALESCE($6, cancel_at_period_end),
            updated_at           = NOW()
        WHERE subscription_id = $1
    `
	if _, err := r.pool.Exec(ctx, q, subscriptionID, status, priceID, periodStart, periodEnd, cancelAtPeriodEnd); err != nil {
		return fmt.Errorf("update subscription %s from provider state: %w", subscriptionID, err)
	}
	return nil
}

func (r *subscriptionRepo) Cancel(ctx context.Context, userID string) error {
	const q = `
        UPDATE subscriptions
        SET status               = $2,
            cancel_at_period_end = TRUE,
            updated_at           = NOW()
        WHERE user_id = $1
    `
	if _, err := r.pool.Exec(ctx, q, userID, model.StatusCanceled); err != nil {
		return fmt.Errorf("cancel subscription for user %s: %w", userID, err)
	}
	return nil
}

func (r *subscriptionRepo) HasActiveSubscription(ctx context.Context, userID string) (bool, error) {
	sub, err := r.GetByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return sub.IsActive(), nil
}

func (r *subscriptionRepo) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]model.Subscription, error) {
	q := `SELECT` + subscriptionColumns + `
        FROM subscriptions
        WHERE updated_at < $1
        ORDER BY updated_at ASC
        LIMIT $2`
	rows, err := r.pool.Query(ctx, q, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		var s model.Subscription
		if err := rows.Scan(
			&s.UserID,
			&s.CustomerID,
			&s.SubscriptionID,
			&s.PlanID,
			&s.PlanTier,
			&s.PriceID,
			&s.Status,
			&s.CurrentPeriodStart,
			&s.CurrentPeriodEnd,
			&s.CancelAtPeriodEnd,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stale subscription: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale subscriptions: %w", err)
	}
	return subs, nil
}

func (r *subscriptionRepo) Ping(ctx context.Context) error {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(1) FROM subscriptions`).Scan(&n); err != nil {
		return fmt.Errorf("probe subscriptions table: %w", err)
	}
	return nil
}
