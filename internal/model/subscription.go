package model

import "time"

// Subscription statuses mirrored from the payment provider. Any other value
// the provider reports is stored verbatim.
const (
	StatusActive   = "active"
	StatusCanceled = "canceled"
	StatusPastDue  = "past_due"
	StatusUnpaid   = "unpaid"
)

// Subscription is the persisted billing state for one user. It is a
// read-through cache of the payment provider's last-seen state, not a source
// of truth: every field except user_id is rewritten from provider events.
type Subscription struct {
	UserID             string    `db:"user_id" json:"user_id"`
	CustomerID         string    `db:"customer_id" json:"customer_id"`
	SubscriptionID     string    `db:"subscription_id" json:"subscription_id"`
	PlanID             string    `db:"plan_id" json:"plan_id"`
	PlanTier           string    `db:"plan_tier" json:"plan_tier"`
	PriceID            string    `db:"price_id" json:"price_id"`
	Status             string    `db:"status" json:"status"`
	CurrentPeriodStart time.Time `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd   time.Time `db:"current_period_end" json:"current_period_end"`
	CancelAtPeriodEnd  bool      `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the subscription currently grants access.
func (s *Subscription) IsActive() bool {
	return s != nil && s.Status == StatusActive
}
