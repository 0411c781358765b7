package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/brojonat/ledgerbridge/service/bridge"
	"github.com/brojonat/ledgerbridge/service/metrics"
	natspkg "github.com/brojonat/ledgerbridge/service/nats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDispatcher emits through a MockEmitter and returns a canned response.
type mockDispatcher struct {
	emitter *natspkg.MockEmitter
	calls   []bridge.Request
}

func (d *mockDispatcher) Dispatch(ctx context.Context, req bridge.Request) bridge.Response {
	d.calls = append(d.calls, req)
	var resp bridge.Response
	if req.Method == "getBalance" {
		resp = bridge.Response{CorrelationID: req.CorrelationID, Data: map[string]any{"balance": 2.5}}
	} else {
		resp = bridge.Response{CorrelationID: req.CorrelationID, Error: &bridge.ErrorPayload{Name: "InvalidRequestError", Reason: "unknown method"}}
	}
	d.emitter.Emit(ctx, resp)
	return resp
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHandleBridge(t *testing.T) {
	d := &mockDispatcher{emitter: natspkg.NewMockEmitter()}
	handler := handleBridge(d, testLogger())

	body := `{"correlationId":"c-1","method":"getBalance","params":{"accountId":"0.0.5"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bridge", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"correlationId":"c-1","data":{"balance":2.5}}`, rec.Body.String())
	require.Len(t, d.calls, 1)
	assert.JSONEq(t, `{"accountId":"0.0.5"}`, string(d.calls[0].Params))
	assert.Len(t, d.emitter.GetResponsesFor("c-1"), 1)
}

func TestHandleBridge_OperationErrorIs200(t *testing.T) {
	d := &mockDispatcher{emitter: natspkg.NewMockEmitter()}
	handler := handleBridge(d, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bridge", strings.NewReader(`{"correlationId":"c-2","method":"nope"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp bridge.RawResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "null", string(resp.Data))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "InvalidRequestError", resp.Error.Name)
}

func TestHandleBridge_PathologicalInput(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantInBody string
	}{
		{
			name:       "extremely large request body",
			body:       `{"correlationId":"c","method":"sign","params":"` + strings.Repeat("A", 2*1024*1024) + `"}`,
			wantInBody: "request body too large",
		},
		{
			name:       "malformed JSON",
			body:       `{"correlationId":`,
			wantInBody: "invalid request body",
		},
		{
			name:       "missing correlation id",
			body:       `{"method":"getBalance"}`,
			wantInBody: "correlationId is required",
		},
		{
			name:       "correlation id with subject separator",
			body:       `{"correlationId":"a.b","method":"getBalance"}`,
			wantInBody: "single subject token",
		},
		{
			name:       "correlation id too long",
			body:       `{"correlationId":"` + strings.Repeat("x", 200) + `","method":"getBalance"}`,
			wantInBody: "too long",
		},
		{
			name:       "missing method",
			body:       `{"correlationId":"c"}`,
			wantInBody: "method is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &mockDispatcher{emitter: natspkg.NewMockEmitter()}
			handler := handleBridge(d, testLogger())

			req := httptest.NewRequest(http.MethodPost, "/api/v1/bridge", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantInBody)
			assert.Empty(t, d.calls)
		})
	}
}

func TestServerHandler_Routes(t *testing.T) {
	d := &mockDispatcher{emitter: natspkg.NewMockEmitter()}
	s := New(":0", d, nil, metrics.NewMetrics(prometheus.NewRegistry()), testLogger())
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","streaming":false,"natsConnected":false,"metrics":true}`, string(body))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/api/v1/bridge", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Post(server.URL+"/api/v1/bridge", "application/json", strings.NewReader(`{"correlationId":"c","method":"getBalance"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/api/v1/bridge")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStreamSubject(t *testing.T) {
	subject, err := streamSubject("")
	require.NoError(t, err)
	assert.Equal(t, "bridge.responses.*", subject)

	subject, err = streamSubject("c-1")
	require.NoError(t, err)
	assert.Equal(t, "bridge.responses.c-1", subject)

	_, err = streamSubject("a>b")
	assert.Error(t, err)
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name      string
		publisher *SSEPublisher
		metrics   bool
		want      Health
	}{
		{
			name: "requests only",
			want: Health{Status: "ok"},
		},
		{
			name:    "metrics enabled",
			metrics: true,
			want:    Health{Status: "ok", Metrics: true},
		},
		{
			name:      "streaming without nats",
			publisher: &SSEPublisher{logger: testLogger()},
			want:      Health{Status: "degraded", Streaming: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleHealth(tt.publisher, tt.metrics).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var got Health
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}
