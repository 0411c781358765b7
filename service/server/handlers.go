package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/brojonat/ledgerbridge/service/bridge"
	natspkg "github.com/brojonat/ledgerbridge/service/nats"
)

const (
	maxRequestBodySize     = 1 << 20 // 1MB - contract params are small
	maxCorrelationIDLength = 128
)

// handleBridge returns a handler that dispatches one bridge request.
// POST /api/v1/bridge
// The body is a bridge.Request; the response is the bridge.Response that was
// also emitted to the host channel. Operation failures are reported in the
// response's error field with status 200; only malformed requests get 400.
func handleBridge(dispatcher natspkg.Dispatcher, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Limit request body size to prevent memory exhaustion
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req bridge.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug("failed to decode bridge request", "error", err)
			// Check if error is due to body size limit
			if strings.Contains(err.Error(), "http: request body too large") {
				writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		if err := validateCorrelationID(req.CorrelationID); err != nil {
			logger.Debug("invalid correlation id", "correlation_id", req.CorrelationID, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if req.Method == "" {
			writeError(w, "method is required", http.StatusBadRequest)
			return
		}

		resp := dispatcher.Dispatch(r.Context(), req)

		logger.Debug("bridge request handled",
			"method", req.Method,
			"correlation_id", req.CorrelationID,
			"error", resp.Error != nil,
		)
		writeJSON(w, resp, http.StatusOK)
	})
}

// Health is the body of GET /health.
type Health struct {
	// Status is "ok", or "degraded" when streaming is enabled but its NATS
	// connection is down.
	Status        string `json:"status"`
	Streaming     bool   `json:"streaming"`
	NATSConnected bool   `json:"natsConnected"`
	Metrics       bool   `json:"metrics"`
}

func handleHealth(publisher *SSEPublisher, metricsEnabled bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := Health{
			Status:        "ok",
			Streaming:     publisher != nil,
			NATSConnected: publisher.Connected(),
			Metrics:       metricsEnabled,
		}
		if h.Streaming && !h.NATSConnected {
			h.Status = "degraded"
		}
		writeJSON(w, h, http.StatusOK)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateCorrelationID checks that responses for this id can be routed back.
// The id becomes a NATS subject token, so it must not contain separators or
// wildcards.
func validateCorrelationID(id string) error {
	if id == "" {
		return errorf("correlationId is required")
	}

	if len(id) > maxCorrelationIDLength {
		return errorf("correlationId too long: maximum length is %d characters", maxCorrelationIDLength)
	}

	if _, err := natspkg.ResponseSubject(id); err != nil {
		return err
	}

	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return errorf("correlationId contains control characters")
		}
	}

	return nil
}

// errorf creates a simple error with a formatted message.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
