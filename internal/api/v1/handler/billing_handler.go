package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/config"
	"app/internal/identity"
	"app/internal/plan"
	"app/internal/ratelimit"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// VerifyEventFunc checks a webhook payload's signature and returns the
// decoded event. Swapped out in tests.
type VerifyEventFunc func(payload []byte, sigHeader, secret string) (stripe.Event, error)

// verifyStripeEvent is the production verifier. API version mismatches are
// tolerated: the SDK pins a single version while accounts may send another,
// and signature validity is what gates processing here.
func verifyStripeEvent(payload []byte, sigHeader, secret string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// BillingHandler exposes the checkout and webhook endpoints.
type BillingHandler struct {
	cfg         *config.Config
	catalog     *plan.Catalog
	checkoutSvc *service.CheckoutService
	reconciler  *service.ReconcilerService
	identity    identity.Provider
	limiter     ratelimit.Limiter
	validate    *validator.Validate
	verifyEvent VerifyEventFunc
	logger      zerolog.Logger
}

func NewBillingHandler(
	cfg *config.Config,
	catalog *plan.Catalog,
	checkoutSvc *service.CheckoutService,
	reconciler *service.ReconcilerService,
	idp identity.Provider,
	limiter ratelimit.Limiter,
	validate *validator.Validate,
	logger zerolog.Logger,
) *BillingHandler {
	return &BillingHandler{
		cfg:         cfg,
		catalog:     catalog,
		checkoutSvc: checkoutSvc,
		reconciler:  reconciler,
		identity:    idp,
		limiter:     limiter,
		validate:    validate,
		verifyEvent: verifyStripeEvent,
		logger:      logger,
	}
}

// RegisterRoutes registers the billing endpoints.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/api/create-checkout-session", http.HandlerFunc(h.CreateCheckoutSession))
	mux.Handle("/api/stripe-webhook", http.HandlerFunc(h.Webhook))
}

// CreateCheckoutSession validates a purchase request and opens a hosted
// checkout session. Checks run cheapest-first; each failure short-circuits.
func (h *BillingHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	allowed, err := h.limiter.Allow(r.Context(), clientIP(r))
	if err != nil {
		// A broken rate-limit store must not take checkout down with it.
		h.logger.Warn().Err(err).Msg("Rate limiter unavailable; allowing request")
		allowed = true
	}
	if !allowed {
		writeError(w, http.StatusTooManyRequests, "too many requests, please try again later")
		return
	}

	if !h.cfg.BillingConfigured() || h.cfg.DBConnectionString == "" {
		h.logger.Error().Msg("Checkout rejected: payment provider or database configuration missing")
		writeError(w, http.StatusInternalServerError, "service temporarily unavailable")
		return
	}

	var req dto.CheckoutSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "planId is required")
		return
	}
	if _, ok := h.catalog.ByID(req.PlanID); !ok {
		writeError(w, http.StatusBadRequest, "unknown plan: "+req.PlanID)
		return
	}
	if req.BillingPeriod != "" && req.BillingPeriod != "monthly" {
		writeError(w, http.StatusBadRequest, "only monthly billing is supported")
		return
	}

	user, err := h.identity.GetUser(r.Context(), bearerToken(r))
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		h.logger.Error().Err(err).Msg("Identity provider lookup failed")
		writeError(w, http.StatusInternalServerError, "service temporarily unavailable")
		return
	}
	if user.Email == "" {
		writeError(w, http.StatusBadRequest, "no email address on account")
		return
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = h.cfg.SiteOrigin
	}

	sessionID, url, err := h.checkoutSvc.CreateSession(r.Context(), user, req.PlanID, req.BillingPeriod, origin)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownPlan):
			writeError(w, http.StatusBadRequest, "unknown plan: "+req.PlanID)
		case errors.Is(err, service.ErrUnsupportedPeriod):
			writeError(w, http.StatusBadRequest, "only monthly billing is supported")
		default:
			// Provider errors are already logged with full detail by the
			// service; the client only sees a generic message.
			writeError(w, http.StatusInternalServerError, "failed to create checkout session")
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.CheckoutSessionResponse{SessionID: sessionID, URL: url})
}

// Webhook verifies and reconciles one provider event delivery. Signature
// verification runs over the exact raw bytes before any business logic.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read payload")
		return
	}

	event, err := h.verifyEvent(payload, r.Header.Get("Stripe-Signature"), h.cfg.StripeWebhookSecret)
	if err != nil {
		// Treated as a security event: a bad signature means the payload
		// did not come from the provider.
		h.logger.Error().Err(err).Str("remote_ip", clientIP(r)).Msg("Webhook signature verification failed")
		writeError(w, http.StatusBadRequest, "signature verification failed")
		return
	}

	if err := h.reconciler.Process(r.Context(), &event); err != nil {
		h.logger.Error().Err(err).Str("event_type", string(event.Type)).Str("event_id", event.ID).Msg("Webhook reconciliation failed")
		code := "reconcile_failed"
		if errors.Is(err, service.ErrMissingMetadata) {
			code = "missing_metadata"
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "webhook processing failed", Details: code})
		return
	}

	writeJSON(w, http.StatusOK, dto.WebhookAckResponse{Received: true})
}
