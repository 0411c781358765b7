package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/brojonat/ledgerbridge/service/config"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ledgerbridge",
		Usage: "Ledger bridge service and CLI",
		Description: `Runs the ledger bridge and exposes its operations from the command line.

Use "serve" to run the NATS worker and HTTP server. The mirror, evm, contract
and keys commands run locally; "client" talks to a running bridge.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			serveCommand(),
			mirrorCommands(),
			evmCommands(),
			contractCommands(),
			keysCommands(),
			clientCommands(),
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "network",
				Usage:   "Ledger network (mainnet or testnet)",
				EnvVars: []string{"LEDGER_NETWORK"},
				Value:   "testnet",
			},
			&cli.StringFlag{
				Name:    "mirror-url",
				Usage:   "Override the network's mirror node URL",
				EnvVars: []string{"MIRROR_URL"},
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Bridge HTTP server URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq filter applied to JSON output",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level for local commands",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "error",
			},
		},
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
