package config_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardvault/walletcore/internal/config"
)

func TestPrintServiceEnv(t *testing.T) {
	cfg := config.DefaultServiceConfigFromEnv()
	_, err := json.MarshalIndent(cfg, "", "  ")
	require.NoError(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WALLETCORE_LOGGER_LEVEL", "debug")
	t.Setenv("WALLETCORE_AUTH_INACTIVITY_TIMEOUT", "90s")
	t.Setenv("WALLETCORE_AUTH_CONFIRM_REQUIRED", "false")
	t.Setenv("WALLETCORE_STORE_PATH", "/tmp/wallets")

	cfg := config.DefaultServiceConfigFromEnv()
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 90*time.Second, cfg.Auth.InactivityTimeout)
	assert.False(t, cfg.Auth.ConfirmRequired)
	assert.Equal(t, "/tmp/wallets", cfg.Store.Path)
}

func TestMalformedEnvFallsBackToDefaults(t *testing.T) {
	t.Setenv("WALLETCORE_AUTH_INACTIVITY_TIMEOUT", "soon")
	t.Setenv("WALLETCORE_AUTH_CONFIRM_REQUIRED", "maybe")

	cfg := config.DefaultServiceConfigFromEnv()
	assert.Equal(t, 5*time.Minute, cfg.Auth.InactivityTimeout)
	assert.True(t, cfg.Auth.ConfirmRequired)
}
