package handler

import (
	"context"
	"errors"
	"time"

	"app/internal/identity"
	"app/internal/model"
	"app/internal/service"

	"github.com/stripe/stripe-go/v82"
)

type fakeIdentity struct {
	user *identity.User
	err  error
}

func (f *fakeIdentity) GetUser(context.Context, string) (*identity.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

type fakeBilling struct {
	createCalls int
	sessionID   string
	sessionURL  string
	createErr   error

	subs     map[string]*stripe.Subscription
	canceled []string
}

func (f *fakeBilling) CreateCheckoutSession(_ context.Context, _ service.CheckoutParams) (string, string, error) {
	f.createCalls++
	if f.createErr != nil {
		return "", "", f.createErr
	}
	return f.sessionID, f.sessionURL, nil
}

func (f *fakeBilling) GetSubscription(_ context.Context, subscriptionID string) (*stripe.Subscription, error) {
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

// fakeRepo is the in-memory stand-in for the subscription table, keyed on
// the provider subscription id like the real one.
type fakeRepo struct {
	rows    map[string]*model.Subscription
	pingErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[string]*model.Subscription)}
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
	cp := *sub
	cp.UpdatedAt = time.Now()
	r.rows[sub.SubscriptionID] = &cp
	out := cp
	return &out, nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, subscriptionID, status string, periodStart, periodEnd *time.Time) error {
	if s, ok := r.rows[subscriptionID]; ok {
		s.Status = status
		if periodStart != nil {
			s.CurrentPeriodStart = *periodStart
		}
		if periodEnd != nil {
			s.CurrentPeriodEnd = *periodEnd
		}
	}
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
	return nil
}

func (r *fakeRepo) Cancel(_ context.Context, userID string) error {
	for _, s := range r.rows {
		if s.UserID == userID {
			s.Status = model.StatusCanceled
			s.CancelAtPeriodEnd = true
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

func (r *fakeRepo) ListStale(context.Context, time.Time, int) ([]model.Subscription, error) {
	return nil, nil
}

func (r *fakeRepo) Ping(context.Context) error { return r.pingErr }

type fakePinger struct{ err error }

func (p *fakePinger) Ping(context.Context) error { return p.err }
