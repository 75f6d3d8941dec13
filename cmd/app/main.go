package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"app/internal/api/v1/router"
	"app/internal/config"
	"app/internal/logger"
	"app/internal/secrets"

	"github.com/joho/godotenv"
)

func main() {
	log := logger.New(os.Getenv("ENVIRONMENT"))

	// 1. Load configuration.
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Msgf("Error loading config: %v", err)
	}
	log = logger.New(cfg.Environment)

	// 2. Resolve Stripe secrets from Secret Manager when not in the env.
	if cfg.GCPProjectID != "" && !cfg.BillingConfigured() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		resolver, err := secrets.NewResolver(ctx, cfg.GCPProjectID)
		if err != nil {
			cancel()
			log.Fatal().Msgf("Failed to create secret resolver: %v", err)
		}
		if cfg.StripeSecretKey == "" {
			if cfg.StripeSecretKey, err = resolver.Get(ctx, "stripe-secret-key"); err != nil {
				log.Fatal().Msgf("Failed to resolve stripe-secret-key: %v", err)
			}
		}
		if cfg.StripeWebhookSecret == "" {
			if cfg.StripeWebhookSecret, err = resolver.Get(ctx, "stripe-webhook-secret"); err != nil {
				log.Fatal().Msgf("Failed to resolve stripe-webhook-secret: %v", err)
			}
		}
		_ = resolver.Close()
		cancel()
	}
	if err := cfg.ValidateBilling(); err != nil {
		log.Fatal().Msgf("Invalid billing configuration: %v", err)
	}

	// 3. Build router (and get DB pool and optional reconcile job).
	r, pool, job, err := router.New(cfg, log)
	if err != nil {
		log.Fatal().Msgf("Failed to build router: %v", err)
	}
	defer pool.Close()

	jobCtx, stopJob := context.WithCancel(context.Background())
	defer stopJob()
	if job != nil {
		go job.Run(jobCtx)
	}

	// 4. Create HTTP server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 5. Start server in a goroutine.
	go func() {
		log.Info().Msgf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Msgf("Listen: %s", err)
		}
	}()

	// 6. Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutdown signal received, exiting...")
	stopJob()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Msgf("Server forced to shutdown: %v", err)
	}
	log.Info().Msg("Server shut down gracefully")
}
