package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brojonat/ledgerbridge/service/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSleeper captures requested delays instead of waiting.
type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func newTestClient(sleeper *recordingSleeper) *Client {
	c := NewClient(Options{
		Service: "test",
		Metrics: metrics.NewMetrics(prometheus.NewRegistry()),
	})
	c.sleep = sleeper.sleep
	return c
}

func TestDo_RetriesRateLimitWithLinearBackoff(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"message":"slow down"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	c := newTestClient(sleeper)

	body, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL}, 3)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{DefaultBaseInterval, 2 * DefaultBaseInterval}, sleeper.delays)
}

func TestDo_RequestTimeoutIsRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusRequestTimeout)
			w.Write([]byte(`{}`))
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	c := newTestClient(sleeper)

	body, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL}, 0)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
	assert.Len(t, sleeper.delays, 1)
}

func TestDo_ExhaustedAttemptsReturnsStatusError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"_status":{"messages":[{"message":"Too many requests"}]}}`))
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	c := newTestClient(sleeper)

	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL}, 2)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Equal(t, "Too many requests", statusErr.Message())
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []time.Duration{DefaultBaseInterval}, sleeper.delays)
}

func TestDo_NonRetryableStatusFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad public key"}}`))
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	c := newTestClient(sleeper)

	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, URL: server.URL, Body: map[string]string{"a": "b"}}, 3)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, "bad public key", statusErr.Message())
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, sleeper.delays)
}

func TestDo_MalformedBody(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "success status", status: http.StatusOK},
		{name: "error status", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`<html>gateway</html>`))
			}))
			defer server.Close()

			c := newTestClient(&recordingSleeper{})

			_, err := c.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL}, 1)
			require.Error(t, err)

			var malformed *MalformedBodyError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, tt.status, malformed.StatusCode)

			var syntaxErr *json.SyntaxError
			assert.True(t, errors.As(err, &syntaxErr))

			var statusErr *StatusError
			assert.False(t, errors.As(err, &statusErr))
		})
	}
}

func TestDo_SendsHeadersAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "token", r.Header.Get("X-SDK-TOKEN"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "0.0.1", body["contractId"])

		w.Write([]byte(`{"id":"0.0.2"}`))
	}))
	defer server.Close()

	c := newTestClient(&recordingSleeper{})

	var out struct {
		ID string `json:"id"`
	}
	err := c.PostJSON(context.Background(), server.URL, map[string]string{"X-SDK-TOKEN": "token"}, map[string]string{"contractId": "0.0.1"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "0.0.2", out.ID)
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewClient(Options{BaseInterval: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Do(ctx, Request{Method: http.MethodGet, URL: server.URL}, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStatusError_MessageFallsBackToBody(t *testing.T) {
	err := &StatusError{StatusCode: 500, Body: json.RawMessage(`{"code":17}`)}
	assert.Equal(t, "", err.Message())
	assert.Contains(t, err.Error(), `{"code":17}`)
}
