package bridge

import (
	"log/slog"
	"net/http"

	"github.com/brojonat/ledgerbridge/service/api"
	"github.com/brojonat/ledgerbridge/service/config"
	"github.com/brojonat/ledgerbridge/service/contract"
	"github.com/brojonat/ledgerbridge/service/evm"
	"github.com/brojonat/ledgerbridge/service/metrics"
	"github.com/brojonat/ledgerbridge/service/mirror"
	"github.com/brojonat/ledgerbridge/service/transport"
)

// NewFromConfig wires the bridge's collaborators from cfg. ledger may be nil,
// in which case contract calls fail with ErrNoLedger. The primary API client
// is only created when credentials are configured.
func NewFromConfig(cfg *config.Config, ledger contract.Ledger, emitter Emitter, m *metrics.Metrics, logger *slog.Logger) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	mirrorHTTP := transport.NewClient(transport.Options{
		Service:      "mirror",
		HTTPClient:   httpClient,
		BaseInterval: cfg.RetryBaseInterval,
		MaxAttempts:  cfg.MaxAttempts,
		RateLimit:    cfg.MirrorRateLimit,
		Metrics:      m,
		Logger:       logger,
	})
	mirrorClient := mirror.NewClient(mirrorHTTP, mirror.Options{
		BaseURL:     cfg.Network.MirrorURL(),
		Network:     cfg.Network.Name(),
		Concurrency: cfg.FanoutConcurrency,
		Metrics:     m,
		Logger:      logger,
	})
	resolver := evm.NewResolver(mirrorClient)

	opts := Options{
		Mirror:   mirrorClient,
		Resolver: resolver,
		Emitter:  emitter,
		Metrics:  m,
		Logger:   logger,
	}

	var feePayer contract.FeePayer
	if cfg.HasAPICredentials() {
		apiHTTP := transport.NewClient(transport.Options{
			Service:      "api",
			HTTPClient:   httpClient,
			BaseInterval: cfg.RetryBaseInterval,
			MaxAttempts:  cfg.MaxAttempts,
			Metrics:      m,
			Logger:       logger,
		})
		apiOpts := api.OptionsFromConfig(cfg)
		apiOpts.Logger = logger
		apiClient := api.NewClient(apiHTTP, apiOpts)
		opts.Accounts = apiClient
		feePayer = apiClient
	} else {
		logger.Warn("primary API credentials not configured, account creation and fee-paid calls disabled")
	}

	if ledger != nil {
		opts.Contracts = contract.NewAssembler(ledger, feePayer, m, logger)
	}

	return New(cfg, opts)
}
