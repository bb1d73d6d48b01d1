// Package metrics exposes Prometheus instruments for layout runs, refreshes
// and HTTP requests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"calgrid/internal/layout"
)

const namespace = "calgrid"

// Refresh outcomes used as the status label.
const (
	RefreshOK      = "ok"
	RefreshPartial = "partial"
	RefreshFailed  = "failed"
)

// Metrics owns an independent registry so several servers (or tests) never
// collide on collector registration. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	layoutDuration     prometheus.Histogram
	layoutEvents       prometheus.Counter
	rebalanceTransfers prometheus.Counter
	refreshes          *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
}

// New registers every instrument plus the Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		layoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_duration_seconds",
			Help:      "Wall time of one layout run over a planned range.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		layoutEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layout_events_total",
			Help:      "Timed event segments laid out.",
		}),
		rebalanceTransfers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebalance_transfers_total",
			Help:      "Leaves moved between branches by the rebalancer.",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Calendar refresh runs by outcome.",
		}, []string{"status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"path", "code"}),
	}

	m.registry.MustRegister(
		m.layoutDuration,
		m.layoutEvents,
		m.rebalanceTransfers,
		m.refreshes,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry is exposed for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveLayout records one layout run.
func (m *Metrics) ObserveLayout(stats layout.Stats, took time.Duration) {
	if m == nil {
		return
	}
	m.layoutDuration.Observe(took.Seconds())
	m.layoutEvents.Add(float64(stats.Events))
	m.rebalanceTransfers.Add(float64(stats.Transfers))
}

// ObserveRefresh counts a refresh run with one of the Refresh* statuses.
func (m *Metrics) ObserveRefresh(status string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(status).Inc()
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Instrument counts requests served by next under the given route label.
func (m *Metrics) Instrument(path string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.httpRequests.WithLabelValues(path, strconv.Itoa(rec.code)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}
