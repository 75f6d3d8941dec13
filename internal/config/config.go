package config

import (
	"errors"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`

	// Stripe secrets are not tagged required because they may be resolved
	// from Secret Manager at startup instead of the environment. main
	// enforces their presence after resolution.
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`

	StripePriceInitiate string `envconfig:"STRIPE_PRICE_INITIATE" required:"true"`
	StripePriceEmergent string `envconfig:"STRIPE_PRICE_EMERGENT" required:"true"`
	StripePriceSentient string `envconfig:"STRIPE_PRICE_SENTIENT" required:"true"`

	// Identity provider settings (token -> user resolution).
	IdentityURL        string `envconfig:"IDENTITY_URL" required:"true"`
	IdentityServiceKey string `envconfig:"IDENTITY_SERVICE_KEY" required:"true"`

	// SiteOrigin is the public origin of the web client; checkout redirect
	// URLs fall back to it when the request carries no Origin header.
	SiteOrigin string `envconfig:"SITE_ORIGIN" required:"true"`

	// Rate limiting. When REDIS_ADDR is empty the limiter falls back to an
	// in-process counter, which is only correct for a single instance.
	RedisAddr          string `envconfig:"REDIS_ADDR"`
	RateLimitMax       int    `envconfig:"RATE_LIMIT_MAX" default:"20"`
	RateLimitWindowSec int    `envconfig:"RATE_LIMIT_WINDOW_SEC" default:"60"`

	// Periodic provider reconciliation. Zero interval disables the job.
	ReconcileIntervalSec   int `envconfig:"RECONCILE_INTERVAL_SEC" default:"0"`
	ReconcileStaleAfterSec int `envconfig:"RECONCILE_STALE_AFTER_SEC" default:"86400"`
	ReconcileBatchSize     int `envconfig:"RECONCILE_BATCH_SIZE" default:"50"`

	// Optional: when set and the Stripe secrets are absent from the
	// environment, they are fetched from GCP Secret Manager.
	GCPProjectID string `envconfig:"GCP_PROJECT_ID"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// BillingConfigured reports whether both payment provider secrets are set.
func (c *Config) BillingConfigured() bool {
	return c.StripeSecretKey != "" && c.StripeWebhookSecret != ""
}

// ValidateBilling is called after secret resolution; missing provider
// secrets are a startup hard failure, never a silent default.
func (c *Config) ValidateBilling() error {
	if c.StripeSecretKey == "" {
		return errors.New("STRIPE_SECRET_KEY is not configured")
	}
	if c.StripeWebhookSecret == "" {
		return errors.New("STRIPE_WEBHOOK_SECRET is not configured")
	}
	return nil
}
