package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XUMM_API_KEY", "key")
	t.Setenv("XUMM_API_SECRET", "secret")
	t.Setenv("TOKEN_SIGNING_SECRET", "signing-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultXummAPIURL, cfg.XummAPIURL)
	assert.Equal(t, DefaultForcedNetwork, cfg.ForcedNetwork)
	assert.Equal(t, "*", cfg.AllowedOrigin)
	assert.Equal(t, 5*time.Minute, cfg.PayloadExpiry)
}

func TestLoad_MissingSecretsAggregated(t *testing.T) {
	t.Setenv("XUMM_API_KEY", "")
	t.Setenv("XUMM_API_SECRET", "")
	t.Setenv("TOKEN_SIGNING_SECRET", "")

	_, err := Load()
	require.Error(t, err)

	// Every missing field is reported at once, not one per restart.
	assert.Contains(t, err.Error(), "XUMM_API_KEY")
	assert.Contains(t, err.Error(), "XUMM_API_SECRET")
	assert.Contains(t, err.Error(), "TOKEN_SIGNING_SECRET")
}

func TestLoad_NoSigningSecretDefault(t *testing.T) {
	// The signing secret deliberately has no placeholder default: an
	// operator must set one or startup fails.
	t.Setenv("XUMM_API_KEY", "key")
	t.Setenv("XUMM_API_SECRET", "secret")
	t.Setenv("TOKEN_SIGNING_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_SIGNING_SECRET")
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("XUMM_API_URL", "http://localhost:7777")
	t.Setenv("XRPL_FORCED_NETWORK", "TESTNET")
	t.Setenv("PAYLOAD_EXPIRY", "10m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ServerAddr)
	assert.Equal(t, "http://localhost:7777", cfg.XummAPIURL)
	assert.Equal(t, "TESTNET", cfg.ForcedNetwork)
	assert.Equal(t, 10*time.Minute, cfg.PayloadExpiry)
}

func TestLoad_RejectsBadExpiry(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PAYLOAD_EXPIRY", "bogus")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("PAYLOAD_EXPIRY", "10s")
	_, err = Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		XummAPIKey:         "key",
		XummAPISecret:      "secret",
		TokenSigningSecret: "signing-secret",
		ForcedNetwork:      "MAINNET",
	}
	require.NoError(t, cfg.Validate())

	cfg.TokenSigningSecret = ""
	require.Error(t, cfg.Validate())
}
