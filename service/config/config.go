package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Xaman (XUMM) platform API credentials
	XummAPIKey    string
	XummAPISecret string
	XummAPIURL    string

	// Network forced onto every created payload. Caller-supplied network
	// options are always overridden with this value.
	ForcedNetwork string

	// Secret used to sign session tokens issued after signature
	// verification. There is deliberately no default: running with a
	// placeholder signing key is a misconfiguration, not a fallback.
	TokenSigningSecret string

	// CORS
	AllowedOrigin string

	// Lifetime of created payloads on the wallet service.
	PayloadExpiry time.Duration
}

const (
	// DefaultXummAPIURL is the production Xaman platform endpoint.
	DefaultXummAPIURL = "https://xumm.app/api/v1/platform"

	// DefaultForcedNetwork is applied to payloads when XRPL_FORCED_NETWORK
	// is unset.
	DefaultForcedNetwork = "MAINNET"
)

// Load reads configuration from environment variables and validates all
// required fields. Returns an error if any required configuration is missing
// or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Upstream credentials
	cfg.XummAPIKey = os.Getenv("XUMM_API_KEY")
	if cfg.XummAPIKey == "" {
		errs = append(errs, fmt.Errorf("XUMM_API_KEY is required"))
	}

	cfg.XummAPISecret = os.Getenv("XUMM_API_SECRET")
	if cfg.XummAPISecret == "" {
		errs = append(errs, fmt.Errorf("XUMM_API_SECRET is required"))
	}

	cfg.XummAPIURL = getEnvOrDefault("XUMM_API_URL", DefaultXummAPIURL)

	// Network selection
	cfg.ForcedNetwork = getEnvOrDefault("XRPL_FORCED_NETWORK", DefaultForcedNetwork)

	// Token signing secret. No placeholder default: an unset secret is a
	// configuration error, not something to paper over silently.
	cfg.TokenSigningSecret = os.Getenv("TOKEN_SIGNING_SECRET")
	if cfg.TokenSigningSecret == "" {
		errs = append(errs, fmt.Errorf("TOKEN_SIGNING_SECRET is required"))
	}

	// CORS
	cfg.AllowedOrigin = getEnvOrDefault("ALLOWED_ORIGIN", "*")

	// Payload expiry
	expiry, err := parseDuration("PAYLOAD_EXPIRY", "5m")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.PayloadExpiry = expiry
	}

	if cfg.PayloadExpiry != 0 && cfg.PayloadExpiry < time.Minute {
		errs = append(errs, fmt.Errorf("PAYLOAD_EXPIRY must be at least 1m"))
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid. This is useful for testing
// configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.XummAPIKey == "" {
		errs = append(errs, fmt.Errorf("XummAPIKey is required"))
	}

	if c.XummAPISecret == "" {
		errs = append(errs, fmt.Errorf("XummAPISecret is required"))
	}

	if c.TokenSigningSecret == "" {
		errs = append(errs, fmt.Errorf("TokenSigningSecret is required"))
	}

	if c.ForcedNetwork == "" {
		errs = append(errs, fmt.Errorf("ForcedNetwork is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable with a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
