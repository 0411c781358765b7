// Package transport issues JSON HTTP requests with bounded retries on transient
// upstream statuses.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/ledgerbridge/service/metrics"
	"go.uber.org/ratelimit"
)

const (
	// DefaultMaxAttempts is used when a request does not specify its own cap.
	DefaultMaxAttempts = 3

	// DefaultBaseInterval is the retry unit; attempt n waits n times this long.
	DefaultBaseInterval = 5 * time.Second

	maxResponseBytes = 8 << 20
)

// Request describes one outbound call. Body, when non-nil, is sent as JSON.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
}

// Options configures a Client. Zero values select the defaults.
type Options struct {
	// Service labels metrics and logs (e.g. "mirror", "api").
	Service      string
	HTTPClient   *http.Client
	BaseInterval time.Duration
	// MaxAttempts is the cap used by GetJSON and PostJSON.
	MaxAttempts int
	// RateLimit caps outbound attempts per second; 0 means unlimited.
	RateLimit int
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Client sends requests and retries 408/429 responses with linear backoff.
// A Client holds no per-request state and is safe for concurrent use.
type Client struct {
	service      string
	http         *http.Client
	baseInterval time.Duration
	maxAttempts  int
	limiter      ratelimit.Limiter
	metrics      *metrics.Metrics
	logger       *slog.Logger

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a retrying client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseInterval := opts.BaseInterval
	if baseInterval <= 0 {
		baseInterval = DefaultBaseInterval
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	limiter := ratelimit.NewUnlimited()
	if opts.RateLimit > 0 {
		limiter = ratelimit.New(opts.RateLimit)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	service := opts.Service
	if service == "" {
		service = "upstream"
	}
	return &Client{
		service:      service,
		http:         httpClient,
		baseInterval: baseInterval,
		maxAttempts:  maxAttempts,
		limiter:      limiter,
		metrics:      opts.Metrics,
		logger:       logger,
		sleep:        sleepWithContext,
	}
}

// Do sends req, retrying on 408 and 429 while attempts remain, and returns the
// raw JSON body of the first 2xx response. maxAttempts <= 0 selects
// DefaultMaxAttempts.
//
// A non-2xx final response yields a *StatusError. A body that is not JSON
// yields a *MalformedBodyError, whatever the status.
func (c *Client) Do(ctx context.Context, req Request, maxAttempts int) (json.RawMessage, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	for attempt := 1; ; attempt++ {
		status, body, err := c.doOnce(ctx, req, payload)
		if err != nil {
			return nil, err
		}

		if status >= 200 && status < 300 {
			if !json.Valid(body) {
				return nil, &MalformedBodyError{StatusCode: status, Body: body, Err: decodeError(body)}
			}
			return json.RawMessage(body), nil
		}

		if retryable(status) && attempt < maxAttempts {
			delay := c.baseInterval * time.Duration(attempt)
			reason := "timeout"
			if status == http.StatusTooManyRequests {
				reason = "rate_limit"
				if c.metrics != nil {
					c.metrics.RecordRateLimitHit(c.service)
				}
			}
			if c.metrics != nil {
				c.metrics.RecordRetry(c.service, reason)
			}
			c.logger.WarnContext(ctx, "transient upstream status, scheduling retry",
				"service", c.service,
				"url", req.URL,
				"status", status,
				"attempt", attempt,
				"delay", delay,
			)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		if !json.Valid(body) {
			return nil, &MalformedBodyError{StatusCode: status, Body: body, Err: decodeError(body)}
		}
		return nil, &StatusError{StatusCode: status, Body: json.RawMessage(body)}
	}
}

// GetJSON issues a GET and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	body, err := c.Do(ctx, Request{Method: http.MethodGet, URL: url, Headers: headers}, c.maxAttempts)
	if err != nil {
		return err
	}
	return decodeInto(body, out)
}

// PostJSON issues a POST with a JSON body and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, in, out any) error {
	body, err := c.Do(ctx, Request{Method: http.MethodPost, URL: url, Headers: headers, Body: in}, c.maxAttempts)
	if err != nil {
		return err
	}
	return decodeInto(body, out)
}

func (c *Client) doOnce(ctx context.Context, req Request, payload []byte) (int, []byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	c.limiter.Take()

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	duration := time.Since(start).Seconds()
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordUpstreamCall(c.service, req.Method, 0, duration)
		}
		c.logger.ErrorContext(ctx, "upstream request failed",
			"service", c.service,
			"url", req.URL,
			"error", err,
		)
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.RecordUpstreamCall(c.service, req.Method, resp.StatusCode, duration)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.DebugContext(ctx, "upstream response",
		"service", c.service,
		"method", req.Method,
		"url", req.URL,
		"status", resp.StatusCode,
		"bytes", len(body),
	)

	return resp.StatusCode, body, nil
}

func retryable(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
}

func decodeInto(body json.RawMessage, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(body []byte) error {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return err
	}
	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
