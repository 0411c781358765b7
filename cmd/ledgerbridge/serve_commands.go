package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/ledgerbridge/service/bridge"
	"github.com/brojonat/ledgerbridge/service/config"
	"github.com/brojonat/ledgerbridge/service/metrics"
	natspkg "github.com/brojonat/ledgerbridge/service/nats"
	"github.com/brojonat/ledgerbridge/service/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the bridge: NATS worker, response stream and HTTP server",
		Description: `Loads configuration from the environment (and .env), then:
  - consumes requests on the bridge.requests subject
  - publishes every response to the BRIDGE_RESPONSES stream
  - serves POST /api/v1/bridge, SSE response streams, /health and /metrics

Contract calls are rejected unless a ledger SDK is linked in.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-worker",
				Usage: "Serve HTTP only, without consuming NATS requests",
			},
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Usage: "Graceful shutdown timeout",
				Value: 30 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger := setupLogger(cfg.LogLevel)
			logger.Info("starting bridge",
				"network", cfg.Network.Name(),
				"addr", cfg.ServerAddr,
				"nats_url", cfg.NATSURL,
				"api_credentials", cfg.HasAPICredentials(),
			)

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			m := metrics.NewMetrics(prometheus.DefaultRegisterer)

			nc, err := natspkg.Connect(cfg.NATSURL, "ledgerbridge")
			if err != nil {
				return err
			}
			defer nc.Close()

			publisher, err := natspkg.NewResponsePublisher(nc, m, logger)
			if err != nil {
				return err
			}

			b, err := bridge.NewFromConfig(cfg, nil, publisher, m, logger)
			if err != nil {
				return fmt.Errorf("failed to build bridge: %w", err)
			}

			var worker *natspkg.Worker
			if !c.Bool("no-worker") {
				worker = natspkg.NewWorker(nc, b, cfg.FanoutConcurrency, logger)
				if err := worker.Start(ctx); err != nil {
					return err
				}
			}

			ssePublisher, err := server.NewSSEPublisher(cfg.NATSURL, logger)
			if err != nil {
				// Streaming is optional; requests still work.
				logger.Warn("SSE publisher unavailable", "error", err)
				ssePublisher = nil
			}

			httpServer := server.New(cfg.ServerAddr, b, ssePublisher, m, logger)

			serverErrors := make(chan error, 1)
			go func() {
				serverErrors <- httpServer.Start()
			}()

			shutdown := make(chan os.Signal, 1)
			signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-serverErrors:
				return fmt.Errorf("server error: %w", err)
			case sig := <-shutdown:
				logger.Info("shutdown signal received", "signal", sig.String())
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), c.Duration("shutdown-timeout"))
			defer shutdownCancel()

			if worker != nil {
				if err := worker.Stop(); err != nil {
					logger.Error("failed to stop worker", "error", err)
				}
			}
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("failed to shutdown server gracefully: %w", err)
			}

			logger.Info("bridge shutdown complete")
			return nil
		},
	}
}
