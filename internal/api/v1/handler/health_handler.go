package handler

import (
	"context"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/config"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// Pinger probes an optional backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports composite service health from configuration
// presence, a trivial subscription-table query, and (when present) the
// shared rate-limit store.
type HealthHandler struct {
	cfg    *config.Config
	repo   repository.SubscriptionRepository
	store  Pinger // nil when the in-process limiter is used
	logger zerolog.Logger
}

func NewHealthHandler(cfg *config.Config, repo repository.SubscriptionRepository, store Pinger, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, repo: repo, store: store, logger: logger}
}

// RegisterRoutes registers the health endpoint.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/api/health", http.HandlerFunc(h.Health))
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	checks := map[string]string{}
	status := "healthy"

	if h.cfg.BillingConfigured() && h.cfg.DBConnectionString != "" {
		checks["config"] = "ok"
	} else {
		checks["config"] = "missing required configuration"
		status = "unhealthy"
	}

	if err := h.repo.Ping(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("Health probe query failed")
		checks["database"] = "unreachable"
		status = "unhealthy"
	} else {
		checks["database"] = "ok"
	}

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			h.logger.Warn().Err(err).Msg("Rate-limit store unreachable")
			checks["ratelimit_store"] = "unreachable"
			// Checkout degrades to allowing requests, so this is not fatal.
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			checks["ratelimit_store"] = "ok"
		}
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, dto.HealthResponse{Status: status, Checks: checks})
}
