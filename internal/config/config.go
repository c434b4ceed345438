// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every knob the service reads at startup. Secrets are
// injected via environment variables only; there are no CLI flags.
type Config struct {
	Host string
	Port string

	DBPath string

	// Billing (Stripe-style subscription API)
	BillingAPIBase  string
	BillingSecret   string
	BillingTimeout  time.Duration
	TierCacheTTL    time.Duration
	ProPriceCents   int64
	VisualPriceCents int64

	// Generative text API
	GenAPIBase string
	GenAPIKey  string
	GenModels  []string

	// Image generation API (visual tier)
	ImageAPIBase string
	ImageAPIKey  string

	// X / OAuth1
	ConsumerKey    string
	ConsumerSecret string
	PublicBaseURL  string

	// Session cookie
	SessionSecret string

	// Quotas
	FreeDailyLimit       int
	CarouselMonthlyLimit int
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("📄 Loaded .env file")
	}

	return &Config{
		Host: getEnv("HOST", "127.0.0.1"),
		Port: getEnv("PORT", "8090"),

		DBPath: getEnv("THREADFORGE_DB", "threadforge.db"),

		BillingAPIBase:   getEnv("STRIPE_API_BASE", "https://api.stripe.com/v1"),
		BillingSecret:    os.Getenv("STRIPE_SECRET_KEY"),
		BillingTimeout:   getDuration("BILLING_TIMEOUT", 10*time.Second),
		TierCacheTTL:     getDuration("TIER_CACHE_TTL", 5*time.Minute),
		ProPriceCents:    getInt64("PRO_PRICE_CENTS", 1200),
		VisualPriceCents: getInt64("VISUAL_PRICE_CENTS", 1700),

		GenAPIBase: getEnv("GEMINI_API_BASE", "https://generativelanguage.googleapis.com/v1beta"),
		GenAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GenModels:  []string{"gemini-2.0-flash", "gemini-2.0-flash-lite", "gemini-1.5-flash"},

		ImageAPIBase: getEnv("IMAGE_API_BASE", "https://api.stability.ai/v1"),
		ImageAPIKey:  os.Getenv("STABILITY_API_KEY"),

		ConsumerKey:    os.Getenv("X_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("X_CONSUMER_SECRET"),
		PublicBaseURL:  getEnv("PUBLIC_BASE_URL", ""),

		SessionSecret: getEnv("SESSION_SECRET", ""),

		FreeDailyLimit:       getInt("FREE_DAILY_LIMIT", 3),
		CarouselMonthlyLimit: getInt("CAROUSEL_MONTHLY_LIMIT", 30),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
