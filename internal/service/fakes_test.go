package service

import (
	"context"
	"errors"
	"time"

	"app/internal/model"

	"github.com/stripe/stripe-go/v82"
)

// fakeBilling records provider calls and serves canned subscriptions.
type fakeBilling struct {
	createCalls []CheckoutParams
	sessionID   string
	sessionURL  string
	createErr   error

	subs   map[string]*stripe.Subscription
	getErr error

	canceled []string
}

func (f *fakeBilling) CreateCheckoutSession(_ context.Context, params CheckoutParams) (string, string, error) {
	f.createCalls = append(f.createCalls, params)
	if f.createErr != nil {
		return "", "", f.createErr
	}
	return f.sessionID, f.sessionURL, nil
}

func (f *fakeBilling) GetSubscription(_ context.Context, subscriptionID string) (*stripe.Subscription, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	sub, ok := f.subs[subscriptionID]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	return sub, nil
}

func (f *fakeBilling) CancelAtPeriodEnd(_ context.Context, subscriptionID string) error {
	f.canceled = append(f.canceled, subscriptionID)
	return nil
}

// fakeRepo is an in-memory SubscriptionRepository keyed like the real one:
// upserts and updates resolve on subscription_id, Cancel on user_id.
type fakeRepo struct {
	rows map[string]*model.Subscription
	now  time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[string]*model.Subscription), now: time.Now()}
}

func (r *fakeRepo) GetByUser(_ context.Context, userID string) (*model.Subscription, error) {
	for _, s := range r.rows {
		if s.UserID == userID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) GetBySubscription(_ context.Context, subscriptionID string) (*model.Subscription, error) {
	s, ok := r.rows[subscriptionID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeRepo) Upsert(_ context.Context, sub *model.Subscription) (*model.Subscription, error) {
	existing, ok := r.rows[sub.SubscriptionID]
	cp := *sub
	if ok {
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.CreatedAt = r.now
	}
	cp.UpdatedAt = r.now
	r.rows[sub.SubscriptionID] = &cp
	out := cp
	return &out, nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, subscriptionID, status string, periodStart, periodEnd *time.Time) error {
	s, ok := r.rows[subscriptionID]
	if !ok {
		return nil
	}
	s.Status = status
	if periodStart != nil {
		s.CurrentPeriodStart = *periodStart
	}
	if periodEnd != nil {
		s.CurrentPeriodEnd = *periodEnd
	}
	s.UpdatedAt = r.now
	return nil
}

func (r *fakeRepo) UpdateFromProvider(_ context.Context, subscriptionID, status string, priceID *string, periodStart, periodEnd *time.Time, cancelAtPeriodEnd *bool) error {
	s, ok := r.rows[subscriptionID]
	if !ok {
		return nil
	}
	s.Status = status
	if priceID != nil {
		s.PriceID = *priceID
	}
	if periodStart != nil {
		s.CurrentPeriodStart = *periodStart
	}
	if periodEnd != nil {
		s.CurrentPeriodEnd = *periodEnd
	}
	if cancelAtPeriodEnd != nil {
		s.CancelAtPeriodEnd = *cancelAtPeriodEnd
	}
	s.UpdatedAt = r.now
	return nil
}

func (r *fakeRepo) Cancel(_ context.Context, userID string) error {
	for _, s := range r.rows {
		if s.UserID == userID {
			s.Status = model.StatusCanceled
			s.CancelAtPeriodEnd = true
			s.UpdatedAt = r.now
		}
	}
	return nil
}

func (r *fakeRepo) HasActiveSubscription(ctx context.Context, userID string) (bool, error) {
	s, err := r.GetByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.IsActive(), nil
}

func (r *fakeRepo) ListStale(_ context.Context, olderThan time.Time, limit int) ([]model.Subscription, error) {
	var out []model.Subscription
	for _, s := range r.rows {
		if s.UpdatedAt.Before(olderThan) {
			out = append(out, *s)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeRepo) Ping(context.Context) error { return nil }
