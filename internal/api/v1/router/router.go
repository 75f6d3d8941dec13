package router

import (
	"context"
	"net/http"
	"time"

	"app/internal/api/v1/handler"
	"app/internal/config"
	"app/internal/identity"
	"app/internal/middleware"
	"app/internal/plan"
	"app/internal/ratelimit"
	"app/internal/repository"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New wires the repositories, services and handlers and returns the root
// HTTP handler, the DB pool (closed by the caller) and the reconciliation
// job (nil when disabled).
func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, *service.ReconcileJob, error) {
	// 1. Open DB connection pool.
	pool, err := pgxpool.New(context.Background(), cfg.DBConnectionString)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	// 2. Plan catalog shared by the checkout and webhook paths.
	catalog := plan.NewCatalog(
		plan.Plan{ID: "initiate", ProductID: "prod_initiate", MonthlyPriceID: cfg.StripePriceInitiate, Tier: "initiate"},
		plan.Plan{ID: "emergent", ProductID: "prod_emergent", MonthlyPriceID: cfg.StripePriceEmergent, Tier: "emergent"},
		plan.Plan{ID: "sentient", ProductID: "prod_sentient", MonthlyPriceID: cfg.StripePriceSentient, Tier: "sentient"},
	)

	// 3. External collaborators.
	billing := service.NewStripeProvider(cfg.StripeSecretKey)
	idp := identity.NewClient(cfg.IdentityURL, cfg.IdentityServiceKey, logger)

	// 4. Rate limiter: shared store when available, process-local otherwise.
	var limiter ratelimit.Limiter
	var store handler.Pinger
	windowLen := time.Duration(cfg.RateLimitWindowSec) * time.Second
	if cfg.RedisAddr != "" {
		rl := ratelimit.NewRedisLimiter(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.RateLimitMax, windowLen)
		limiter = rl
		store = rl
	} else {
		logger.Warn().Msg("REDIS_ADDR not set; using in-process rate limiting (single instance only)")
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitMax, windowLen)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	// 5. Repositories, services, handlers.
	subRepo := repository.NewSubscriptionRepo(pool)

	checkoutSvc := service.NewCheckoutService(catalog, billing, logger)
	reconciler := service.NewReconcilerService(catalog, billing, subRepo, logger)
	subSvc := service.NewSubscriptionService(subRepo, billing, logger)

	billingHandler := handler.NewBillingHandler(cfg, catalog, checkoutSvc, reconciler, idp, limiter, validate, logger)
	subscriptionHandler := handler.NewSubscriptionHandler(subSvc, idp, logger)
	healthHandler := handler.NewHealthHandler(cfg, subRepo, store, logger)

	mux := http.NewServeMux()
	billingHandler.RegisterRoutes(mux)
	subscriptionHandler.RegisterRoutes(mux)
	healthHandler.RegisterRoutes(mux)

	// 6. Optional periodic reconciliation against the provider.
	var job *service.ReconcileJob
	if cfg.ReconcileIntervalSec > 0 {
		job = service.NewReconcileJob(
			subRepo,
			billing,
			time.Duration(cfg.ReconcileIntervalSec)*time.Second,
			time.Duration(cfg.ReconcileStaleAfterSec)*time.Second,
			cfg.ReconcileBatchSize,
			logger,
		)
	}

	// 7. CORS: the webhook endpoint is server-to-server, but the checkout
	// and subscription endpoints are called from the web client.
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.SiteOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	return middleware.RequestLogger(logger)(c.Handler(mux)), pool, job, nil
}
