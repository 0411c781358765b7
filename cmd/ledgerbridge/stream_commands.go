package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/brojonat/ledgerbridge/service/bridge"
	natspkg "github.com/brojonat/ledgerbridge/service/nats"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

func streamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Stream bridge responses via SSE (HTTP)",
		ArgsUsage: "[correlation_id]",
		Action: func(c *cli.Context) error {
			serverURL := c.String("server-url")
			correlationID := c.Args().First()

			url := serverURL + "/api/v1/stream/responses"
			if correlationID != "" {
				url += "/" + correlationID
			}

			ctx, cancel := signalContext(c.Context)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			req.Header.Set("Accept", "text/event-stream")

			// No timeout for streaming
			resp, err := (&http.Client{}).Do(req)
			if err != nil {
				return fmt.Errorf("failed to connect to SSE endpoint: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned status %d", resp.StatusCode)
			}

			fmt.Fprintf(os.Stderr, "Streaming responses from %s (Ctrl+C to stop)\n", url)

			err = readSSE(resp.Body, func(event, data string) error {
				return handleSSEEvent(c, event, data)
			})
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("error reading SSE stream: %w", err)
			}
			return nil
		},
	}
}

// readSSE calls handle for every complete event read from r.
func readSSE(r io.Reader, handle func(event, data string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var currentEvent, currentData string

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line indicates end of event
		if line == "" {
			if currentEvent != "" && currentData != "" {
				if err := handle(currentEvent, currentData); err != nil {
					return err
				}
			}
			currentEvent = ""
			currentData = ""
			continue
		}

		if strings.HasPrefix(line, "event:") {
			currentEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			currentData = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	return scanner.Err()
}

func handleSSEEvent(c *cli.Context, eventType, data string) error {
	switch eventType {
	case "response":
		var resp bridge.RawResponse
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			return fmt.Errorf("failed to decode response event: %w", err)
		}
		return printOutput(c, resp)

	case "error":
		var errInfo map[string]interface{}
		if err := json.Unmarshal([]byte(data), &errInfo); err != nil {
			return err
		}
		return fmt.Errorf("server error: %v", errInfo["error"])

	default:
		return nil
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Stream bridge responses directly from JetStream",
		ArgsUsage: "[correlation_id]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "ledgerbridge-cli",
			},
		},
		Action: func(c *cli.Context) error {
			subject := natspkg.StreamSubjects
			if id := c.Args().First(); id != "" {
				s, err := natspkg.ResponseSubject(id)
				if err != nil {
					return err
				}
				subject = s
			}

			nc, err := natspkg.Connect(c.String("nats-url"), "ledgerbridge-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			consumerConfig := jetstream.ConsumerConfig{
				FilterSubject: subject,
				AckPolicy:     jetstream.AckExplicitPolicy,
			}
			if c.Bool("durable") {
				consumerConfig.Durable = c.String("consumer-name")
				consumerConfig.Name = c.String("consumer-name")
			}

			ctx, cancel := signalContext(c.Context)
			defer cancel()

			cons, err := js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, consumerConfig)
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}

			fmt.Fprintf(os.Stderr, "Subscribed to %s (Ctrl-C to exit)\n", subject)

			msgChan := make(chan jetstream.Msg, 10)
			cc, err := cons.Consume(func(msg jetstream.Msg) {
				msgChan <- msg
			})
			if err != nil {
				return fmt.Errorf("failed to consume: %w", err)
			}
			defer cc.Stop()

			count := 0
			for {
				select {
				case msg := <-msgChan:
					var resp bridge.RawResponse
					if err := json.Unmarshal(msg.Data(), &resp); err != nil {
						fmt.Fprintf(os.Stderr, "Error parsing response: %v\n", err)
						msg.Ack()
						continue
					}
					count++
					if err := printOutput(c, resp); err != nil {
						return err
					}
					msg.Ack()

				case <-ctx.Done():
					fmt.Fprintf(os.Stderr, "Received %d responses\n", count)
					return nil
				}
			}
		},
	}
}

func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the BRIDGE_RESPONSES JetStream stream",
		Action: func(c *cli.Context) error {
			nc, err := natspkg.Connect(c.String("nats-url"), "ledgerbridge-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			stream, err := js.Stream(c.Context, natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}

			info, err := stream.Info(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			return printOutput(c, map[string]any{
				"name":      info.Config.Name,
				"subjects":  info.Config.Subjects,
				"messages":  info.State.Msgs,
				"bytes":     info.State.Bytes,
				"firstSeq":  info.State.FirstSeq,
				"lastSeq":   info.State.LastSeq,
				"consumers": info.State.Consumers,
				"maxAge":    info.Config.MaxAge.String(),
				"storage":   info.Config.Storage.String(),
			})
		},
	}
}

// signalContext is cancelled on interrupt or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
