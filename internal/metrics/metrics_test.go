package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_ServesRegisteredCollectors(t *testing.T) {
	reg := NewRegistry()
	m := NewFanoutMetrics(reg)
	m.Evictions.Add(3)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "b3stream_fanout_evictions_total 3")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestHTTPMetrics_Middleware(t *testing.T) {
	reg := NewRegistry()
	m := NewHTTPMetrics(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/market/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := m.Middleware(mux)

	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/market/FOO", nil))
	}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "GET /api/v1/market/{symbol}", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlightGauge))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestsTotal))
}

func TestStreamMetrics_Register(t *testing.T) {
	reg := NewRegistry()
	m := NewStreamMetrics(reg)
	m.TicksPublished.WithLabelValues("PETR4").Inc()

	n, err := testutil.GatherAndCount(reg, "b3stream_stream_ticks_published_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
