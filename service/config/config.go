package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brojonat/ledgerbridge/service/network"
	"github.com/joho/godotenv"
)

// Config holds all bridge configuration loaded from environment variables.
// It is built once at startup and only read afterwards.
type Config struct {
	// Ledger environment
	Network network.Endpoint

	// Primary API credentials
	SDKToken    string
	DAppCode    string
	Fingerprint string

	// Ambient configuration
	LogLevel   string
	NATSURL    string
	ServerAddr string

	// Upstream HTTP behaviour
	HTTPTimeout       time.Duration
	RetryBaseInterval time.Duration
	MaxAttempts       int
	MirrorRateLimit   int
	FanoutConcurrency int

	// Contract calls
	DefaultGas uint64
}

// LoadDotEnv seeds the environment from the given files (".env" when none are
// given). Variables already set are not overridden and missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables and validates all fields.
// Returns an error listing every missing or invalid value.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Network selection
	networkName := os.Getenv("LEDGER_NETWORK")
	if networkName == "" {
		errs = append(errs, fmt.Errorf("LEDGER_NETWORK is required"))
	} else {
		endpoint, err := network.Parse(networkName)
		if err != nil {
			errs = append(errs, fmt.Errorf("LEDGER_NETWORK: %w", err))
		}
		cfg.Network = endpoint
	}

	// Primary API credentials
	cfg.SDKToken = os.Getenv("SDK_TOKEN")
	cfg.DAppCode = os.Getenv("DAPP_CODE")
	cfg.Fingerprint = os.Getenv("DEVICE_FINGERPRINT")

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")

	if d, err := parseDuration("HTTP_TIMEOUT", "30s"); err != nil {
		errs = append(errs, err)
	} else {
		cfg.HTTPTimeout = d
	}

	if d, err := parseDuration("RETRY_BASE_INTERVAL", "5s"); err != nil {
		errs = append(errs, err)
	} else {
		cfg.RetryBaseInterval = d
	}

	if n, err := parseInt("MAX_ATTEMPTS", 3); err != nil {
		errs = append(errs, err)
	} else {
		cfg.MaxAttempts = n
	}

	if n, err := parseInt("MIRROR_RATE_LIMIT", 0); err != nil {
		errs = append(errs, err)
	} else {
		cfg.MirrorRateLimit = n
	}

	if n, err := parseInt("FANOUT_CONCURRENCY", 10); err != nil {
		errs = append(errs, err)
	} else {
		cfg.FanoutConcurrency = n
	}

	if n, err := parseInt("DEFAULT_GAS", 100000); err != nil {
		errs = append(errs, err)
	} else if n <= 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_GAS must be positive"))
	} else {
		cfg.DefaultGas = uint64(n)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for binaries where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.Network.IsZero() {
		errs = append(errs, fmt.Errorf("Network is required"))
	}

	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("MaxAttempts must be at least 1"))
	}

	if c.RetryBaseInterval <= 0 {
		errs = append(errs, fmt.Errorf("RetryBaseInterval must be positive"))
	}

	if c.HTTPTimeout < time.Second {
		errs = append(errs, fmt.Errorf("HTTPTimeout must be at least 1 second"))
	}

	if c.MirrorRateLimit < 0 {
		errs = append(errs, fmt.Errorf("MirrorRateLimit cannot be negative"))
	}

	if c.FanoutConcurrency < 1 {
		errs = append(errs, fmt.Errorf("FanoutConcurrency must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// HasAPICredentials reports whether the primary API can be called.
func (c *Config) HasAPICredentials() bool {
	return c.SDKToken != "" && c.DAppCode != ""
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
