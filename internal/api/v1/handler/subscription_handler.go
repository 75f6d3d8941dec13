package handler

import (
	"errors"
	"net/http"

	"app/internal/identity"
	"app/internal/service"

	"github.com/rs/zerolog"
)

// SubscriptionHandler exposes the authenticated read/cancel endpoints for
// the caller's own subscription.
type SubscriptionHandler struct {
	subSvc   service.SubscriptionService
	identity identity.Provider
	logger   zerolog.Logger
}

func NewSubscriptionHandler(subSvc service.SubscriptionService, idp identity.Provider, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subSvc: subSvc, identity: idp, logger: logger}
}

// RegisterRoutes registers the subscription endpoints.
func (h *SubscriptionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/api/subscription", http.HandlerFunc(h.Get))
	mux.Handle("/api/cancel-subscription", http.HandlerFunc(h.Cancel))
}

func (h *SubscriptionHandler) authenticate(w http.ResponseWriter, r *http.Request) *identity.User {
	user, err := h.identity.GetUser(r.Context(), bearerToken(r))
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return nil
		}
		h.logger.Error().Err(err).Msg("Identity provider lookup failed")
		writeError(w, http.StatusInternalServerError, "service temporarily unavailable")
		return nil
	}
	return user
}

// Get returns the caller's subscription record.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user := h.authenticate(w, r)
	if user == nil {
		return
	}
	sub, err := h.subSvc.GetByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch subscription")
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "no subscription")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// Cancel flags the caller's subscription to end at the period close.
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user := h.authenticate(w, r)
	if user == nil {
		return
	}
	sub, err := h.subSvc.Cancel(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, service.ErrNoSubscription) {
			writeError(w, http.StatusNotFound, "no subscription")
			return
		}
		h.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to cancel subscription")
		writeError(w, http.StatusInternalServerError, "failed to cancel subscription")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
