package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calgrid/internal/layout"
	"calgrid/internal/metrics"
)

func TestObserveLayout(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.ObserveLayout(layout.Stats{Events: 12, Transfers: 2}, 3*time.Millisecond)
	m.ObserveLayout(layout.Stats{Events: 3}, time.Millisecond)
	m.ObserveRefresh(metrics.RefreshOK)
	m.ObserveRefresh(metrics.RefreshPartial)
	m.ObserveRefresh(metrics.RefreshOK)

	body := scrape(t, m)
	assert.Contains(t, body, "calgrid_layout_events_total 15")
	assert.Contains(t, body, "calgrid_rebalance_transfers_total 2")
	assert.Contains(t, body, `calgrid_refresh_total{status="ok"} 2`)
	assert.Contains(t, body, "calgrid_layout_duration_seconds_count 2")
}

func TestInstrument(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	h := m.Instrument("/api/layout", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fail") != "" {
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, target := range []string{"/api/layout", "/api/layout", "/api/layout?fail=1"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	n, err := testutil.GatherAndCount(m.Registry(), "calgrid_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per status code")

	body := scrape(t, m)
	assert.Contains(t, body, `calgrid_http_requests_total{code="200",path="/api/layout"} 2`)
	assert.Contains(t, body, `calgrid_http_requests_total{code="400",path="/api/layout"} 1`)
}

func TestNilMetrics(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveLayout(layout.Stats{Events: 1}, time.Millisecond)
		m.ObserveRefresh(metrics.RefreshFailed)
	})

	next := http.NotFoundHandler()
	assert.NotNil(t, m.Instrument("/x", next))
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}
