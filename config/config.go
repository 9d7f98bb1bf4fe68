// Package config loads gateway settings from the environment, with a
// local .env file honored in development.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config is everything cmd needs to wire the gateway.
type Config struct {
	ListenAddr string

	DatabaseURL string
	RedisAddr   string // empty disables redis-backed cache and limits

	JWTSecret   string // empty disables the HS256 resolver
	UserinfoURL string // empty uses the provider default

	// OIDCJWKSURL switches identity resolution to local ID-token
	// verification against the provider's key set.
	OIDCJWKSURL  string
	OIDCIssuer   string
	OIDCAudience string

	ClientID     string
	ClientSecret string
	RedirectURI  string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeSuccessURL    string
	StripeCancelURL     string

	ScannerURL string // empty uses the provider default
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads the environment (after a best-effort .env load) and
// validates the settings the core cannot run without.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:          getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		UserinfoURL:         os.Getenv("USERINFO_URL"),
		OIDCJWKSURL:         os.Getenv("OIDC_JWKS_URL"),
		OIDCIssuer:          os.Getenv("OIDC_ISSUER"),
		OIDCAudience:        os.Getenv("OIDC_AUDIENCE"),
		ClientID:            os.Getenv("CLIENT_ID"),
		ClientSecret:        os.Getenv("CLIENT_SECRET"),
		RedirectURI:         os.Getenv("REDIRECT_URI"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeSuccessURL:    os.Getenv("STRIPE_SUCCESS_URL"),
		StripeCancelURL:     os.Getenv("STRIPE_CANCEL_URL"),
		ScannerURL:          os.Getenv("SCANNER_URL"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "" {
		return Config{}, fmt.Errorf("config: STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required")
	}
	return cfg, nil
}
