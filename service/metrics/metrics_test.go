package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordUpstreamCall(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordUpstreamCall("mirror", "GET", 200, 0.1)
	m.RecordUpstreamCall("mirror", "GET", 429, 0.1)
	m.RecordUpstreamCall("mirror", "GET", 0, 0.1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamCallsTotal.WithLabelValues("mirror", "GET", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamCallsTotal.WithLabelValues("mirror", "GET", "4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamCallsTotal.WithLabelValues("mirror", "GET", "unknown")))
}

func TestRecordCallStage(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordCallStage("signed", nil)
	m.RecordCallStage("executed", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.contractCallStages.WithLabelValues("signed", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.contractCallStages.WithLabelValues("executed", "error")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	handler := HTTPMetricsMiddleware(m, "/api/v1/bridge")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bridge", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/api/v1/bridge", "POST", "4xx")))
}
