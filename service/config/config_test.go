package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brojonat/ledgerbridge/service/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	os.Setenv("LEDGER_NETWORK", "testnet")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, network.Testnet, cfg.Network)
	assert.Equal(t, ":8080", cfg.ServerAddr) // Default
	assert.Equal(t, "info", cfg.LogLevel)    // Default
	assert.Equal(t, 5*time.Second, cfg.RetryBaseInterval)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 10, cfg.FanoutConcurrency)
	assert.Equal(t, uint64(100000), cfg.DefaultGas)
	assert.False(t, cfg.HasAPICredentials())
}

func TestLoad_MissingNetwork(t *testing.T) {
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "LEDGER_NETWORK is required")
}

func TestLoad_InvalidNetwork(t *testing.T) {
	os.Setenv("LEDGER_NETWORK", "devnet")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid network")
}

func TestLoad_InvalidRetryInterval(t *testing.T) {
	os.Setenv("LEDGER_NETWORK", "mainnet")
	os.Setenv("RETRY_BASE_INTERVAL", "soon")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("LEDGER_NETWORK", "mainnet")
	os.Setenv("SDK_TOKEN", "token")
	os.Setenv("DAPP_CODE", "dapp")
	os.Setenv("DEVICE_FINGERPRINT", "fp")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("MAX_ATTEMPTS", "5")
	os.Setenv("MIRROR_RATE_LIMIT", "20")
	os.Setenv("DEFAULT_GAS", "250000")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, network.Mainnet, cfg.Network)
	assert.Equal(t, "token", cfg.SDKToken)
	assert.Equal(t, "dapp", cfg.DAppCode)
	assert.Equal(t, "fp", cfg.Fingerprint)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 20, cfg.MirrorRateLimit)
	assert.Equal(t, uint64(250000), cfg.DefaultGas)
	assert.True(t, cfg.HasAPICredentials())
}

func TestLoad_InvalidInteger(t *testing.T) {
	os.Setenv("LEDGER_NETWORK", "mainnet")
	os.Setenv("MAX_ATTEMPTS", "three")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid integer")
}

func TestValidate(t *testing.T) {
	valid := Config{
		Network:           network.Testnet,
		HTTPTimeout:       30 * time.Second,
		RetryBaseInterval: 5 * time.Second,
		MaxAttempts:       3,
		FanoutConcurrency: 4,
	}
	require.NoError(t, valid.Validate())

	missingNetwork := valid
	missingNetwork.Network = network.Endpoint{}
	err := missingNetwork.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Network is required")

	noAttempts := valid
	noAttempts.MaxAttempts = 0
	err = noAttempts.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MaxAttempts must be at least 1")
}

func TestLoadDotEnv(t *testing.T) {
	defer cleanupEnv()

	path := filepath.Join(t.TempDir(), "bridge.env")
	require.NoError(t, os.WriteFile(path, []byte("LEDGER_NETWORK=mainnet\nDAPP_CODE=fromfile\n"), 0o600))

	os.Setenv("DAPP_CODE", "fromenv")
	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, network.Mainnet, cfg.Network)
	assert.Equal(t, "fromenv", cfg.DAppCode)
}

func TestMustLoad_Panics(t *testing.T) {
	defer cleanupEnv()

	assert.Panics(t, func() {
		MustLoad()
	})
}

// cleanupEnv clears all environment variables used in tests
func cleanupEnv() {
	for _, key := range []string{
		"LEDGER_NETWORK", "SDK_TOKEN", "DAPP_CODE", "DEVICE_FINGERPRINT",
		"LOG_LEVEL", "NATS_URL", "SERVER_ADDR", "HTTP_TIMEOUT",
		"RETRY_BASE_INTERVAL", "MAX_ATTEMPTS", "MIRROR_RATE_LIMIT",
		"FANOUT_CONCURRENCY", "DEFAULT_GAS",
	} {
		os.Unsetenv(key)
	}
}
