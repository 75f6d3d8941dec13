package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"app/internal/identity"
	"app/internal/model"
	"app/internal/service"

	"github.com/rs/zerolog"
)

func newSubscriptionFixture(repo *fakeRepo) (*SubscriptionHandler, *fakeBilling) {
	billing := &fakeBilling{}
	idp := &fakeIdentity{user: &identity.User{ID: "u1", Email: "u1@example.com"}}
	svc := service.NewSubscriptionService(repo, billing, zerolog.Nop())
	return NewSubscriptionHandler(svc, idp, zerolog.Nop()), billing
}

func TestGetSubscription(t *testing.T) {
	repo := newFakeRepo()
	repo.rows["sub_123"] = &model.Subscription{
		UserID: "u1", SubscriptionID: "sub_123", PlanTier: "initiate", Status: model.StatusActive,
	}
	h, _ := newSubscriptionFixture(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/subscription", nil)
	req.Header.Set("Authorization", "Bearer token-u1")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var sub model.Subscription
	if err := json.NewDecoder(rec.Body).Decode(&sub); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if sub.SubscriptionID != "sub_123" || sub.PlanTier != "initiate" {
		t.Fatalf("unexpected subscription: %+v", sub)
	}
}

func TestGetSubscriptionNotFound(t *testing.T) {
	h, _ := newSubscriptionFixture(newFakeRepo())

	req := httptest.NewRequest(http.MethodGet, "/api/subscription", nil)
	req.Header.Set("Authorization", "Bearer token-u1")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rec.Code)
	}
}

func TestGetSubscriptionUnauthorized(t *testing.T) {
	h, _ := newSubscriptionFixture(newFakeRepo())
	h.identity = &fakeIdentity{err: identity.ErrInvalidToken}

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/subscription", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", rec.Code)
	}
}

func TestCancelSubscription(t *testing.T) {
	repo := newFakeRepo()
	repo.rows["sub_123"] = &model.Subscription{
		UserID: "u1", SubscriptionID: "sub_123", Status: model.StatusActive,
	}
	h, billing := newSubscriptionFixture(repo)

	req := httptest.NewRequest(http.MethodPost, "/api/cancel-subscription", nil)
	req.Header.Set("Authorization", "Bearer token-u1")
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if len(billing.canceled) != 1 || billing.canceled[0] != "sub_123" {
		t.Fatalf("provider cancellation not flagged: %v", billing.canceled)
	}
	var sub model.Subscription
	if err := json.NewDecoder(rec.Body).Decode(&sub); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if sub.Status != model.StatusCanceled || !sub.CancelAtPeriodEnd {
		t.Fatalf("unexpected subscription: %+v", sub)
	}
}

func TestCancelSubscriptionNotFound(t *testing.T) {
	h, _ := newSubscriptionFixture(newFakeRepo())

	req := httptest.NewRequest(http.MethodPost, "/api/cancel-subscription", nil)
	req.Header.Set("Authorization", "Bearer token-u1")
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rec.Code)
	}
}
