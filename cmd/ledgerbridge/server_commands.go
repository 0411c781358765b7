package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brojonat/ledgerbridge/service/server"
	"github.com/urfave/cli/v2"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Report which bridge transports the server has up",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "require-streaming",
				Usage: "Fail unless SSE streaming is enabled and connected to NATS",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the raw health document",
			},
		},
		Action: func(c *cli.Context) error {
			h, err := fetchHealth(c.Context, c.String("server-url"), c.Duration("timeout"))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				if err := printOutput(c, h); err != nil {
					return err
				}
			} else {
				printHealth(c.App.Writer, c.String("server-url"), h)
			}

			if c.Bool("require-streaming") && !(h.Streaming && h.NATSConnected) {
				return fmt.Errorf("bridge streaming unavailable (status: %s)", h.Status)
			}
			return nil
		},
	}
}

func fetchHealth(ctx context.Context, serverURL string, timeout time.Duration) (*server.Health, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build health request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned unhealthy status: %d", resp.StatusCode)
	}

	var h server.Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &h, nil
}

func printHealth(w io.Writer, serverURL string, h *server.Health) {
	mark := "✓"
	if h.Status != "ok" {
		mark = "!"
	}
	fmt.Fprintf(w, "%s Bridge %s at %s\n", mark, h.Status, serverURL)
	fmt.Fprintf(w, "  HTTP requests: up\n")
	switch {
	case !h.Streaming:
		fmt.Fprintf(w, "  SSE streaming: disabled\n")
	case h.NATSConnected:
		fmt.Fprintf(w, "  SSE streaming: up (NATS connected)\n")
	default:
		fmt.Fprintf(w, "  SSE streaming: down (NATS disconnected)\n")
	}
	fmt.Fprintf(w, "  Metrics:       %s\n", enabled(h.Metrics))
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "ledgerbridge\n")
			fmt.Fprintf(c.App.Writer, "  Version: %s\n", version)
			fmt.Fprintf(c.App.Writer, "  Commit:  %s\n", commit)
			fmt.Fprintf(c.App.Writer, "  Built:   %s\n", date)
			return nil
		},
	}
}
