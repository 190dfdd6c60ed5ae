// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Gate paths. The gate compares request paths against these; the panel
	// frontend serves the pages behind them.
	LoginPath          string
	PlanSelectionPath  string
	SubscriptionPrefix string // subscription-management namespace, allowed while suspended
	QRPrefix           string // QR provisioning namespace, marks plan redirects with origin=qr

	// Trial
	TrialDays int // account-age trial window for tenants with no subscription row

	// Security
	AdminSecret        string // Admin API secret
	RateLimitRPS       int
	CORSAllowedOrigins []string // browser origins allowed by CORS; "*" allows all

	// Tracing
	OTLPEndpoint string // OTLP gRPC endpoint; empty disables tracing
}

// Defaults
const (
	DefaultPort               = "8080"
	DefaultEnv                = "development"
	DefaultLogLevel           = "info"
	DefaultLoginPath          = "/login"
	DefaultPlanSelectionPath  = "/app/plans"
	DefaultSubscriptionPrefix = "/app/subscription"
	DefaultQRPrefix           = "/app/instances/qr"
	DefaultTrialDays          = 7
	DefaultRateLimit          = 100
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", DefaultPort),
		Env:                getEnv("ENV", DefaultEnv),
		LogLevel:           getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:        os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		LoginPath:          getEnv("LOGIN_PATH", DefaultLoginPath),
		PlanSelectionPath:  getEnv("PLAN_SELECTION_PATH", DefaultPlanSelectionPath),
		SubscriptionPrefix: getEnv("SUBSCRIPTION_PREFIX", DefaultSubscriptionPrefix),
		QRPrefix:           getEnv("QR_PREFIX", DefaultQRPrefix),
		TrialDays:          int(getEnvInt64("TRIAL_DAYS", DefaultTrialDays)),
		AdminSecret:        os.Getenv("ADMIN_SECRET"),
		RateLimitRPS:       int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.TrialDays < 1 {
		return fmt.Errorf("TRIAL_DAYS must be at least 1")
	}
	if c.LoginPath == "" || c.LoginPath[0] != '/' {
		return fmt.Errorf("LOGIN_PATH must be an absolute path")
	}
	if c.PlanSelectionPath == "" || c.PlanSelectionPath[0] != '/' {
		return fmt.Errorf("PLAN_SELECTION_PATH must be an absolute path")
	}
	if c.IsProduction() && c.AdminSecret == "" {
		return fmt.Errorf("ADMIN_SECRET is required in production")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
