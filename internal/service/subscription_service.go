package service

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// ErrNoSubscription is returned when the user has no subscription row.
var ErrNoSubscription = errors.New("no subscription for user")

// SubscriptionService defines the user-facing subscription operations.
type SubscriptionService interface {
	GetByUser(ctx context.Context, userID string) (*model.Subscription, error)
	HasActiveSubscription(ctx context.Context, userID string) (bool, error)
	// Cancel flags the provider subscription to end at the period close and
	// mirrors the cancellation locally. Returns the updated record.
	Cancel(ctx context.Context, userID string) (*model.Subscription, error)
}

type subscriptionService struct {
	repo    repository.SubscriptionRepository
	billing BillingProvider
	logger  zerolog.Logger
}

// NewSubscriptionService creates a new SubscriptionService with a scoped logger.
func NewSubscriptionService(repo repository.SubscriptionRepository, billing BillingProvider, logger zerolog.Logger) SubscriptionService {
	return &subscriptionService{
		repo:    repo,
		billing: billing,
		logger:  logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

func (s *subscriptionService) GetByUser(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch subscription")
		return nil, err
	}
	return sub, nil
}

func (s *subscriptionService) HasActiveSubscription(ctx context.Context, userID string) (bool, error) {
	return s.repo.HasActiveSubscription(ctx, userID)
}

func (s *subscriptionService) Cancel(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNoSubscription
	}
	if sub.SubscriptionID != "" {
		if err := s.billing.CancelAtPeriodEnd(ctx, sub.SubscriptionID); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Str("subscription_id", sub.SubscriptionID).Msg("Failed to flag provider subscription for cancellation")
			return nil, fmt.Errorf("cancel subscription with provider: %w", err)
		}
	}
	if err := s.repo.Cancel(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.GetByUser(ctx, userID)
}
