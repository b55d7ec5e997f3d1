// Package metrics exposes Prometheus counters and histograms for feed fetches,
// series reconstruction and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bsirates"

// Fetch outcomes
const (
	OutcomeOK    = "ok"
	OutcomeCache = "cache"
	OutcomeError = "error"
)

// Metrics holds the collectors on a private registry. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	feedBytes     prometheus.Gauge
	resolved      *prometheus.CounterVec
	requests      *prometheus.CounterVec
	reqDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them with a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetches_total",
			Help:      "Feed fetch attempts by outcome.",
		}, []string{"outcome"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Time spent downloading the feed.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		feedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_size_bytes",
			Help:      "Size of the last fetched feed.",
		}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolved_days_total",
			Help:      "Requested days by resolution kind.",
		}, []string{"currency", "kind"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "method", "status"}),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.fetches,
		m.fetchDuration,
		m.feedBytes,
		m.resolved,
		m.requests,
		m.reqDuration,
		collectors.NewGoCollector(),
	)

	return m
}

// ObserveFetch records one fetch outcome. size is ignored unless the fetch succeeded.
func (m *Metrics) ObserveFetch(outcome string, elapsed time.Duration, size int) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.fetchDuration.Observe(elapsed.Seconds())
		m.feedBytes.Set(float64(size))
	}
}

// ObserveResolved adds the counts of one reconstruction run
func (m *Metrics) ObserveResolved(currency string, stats entity.SeriesStats) {
	if m == nil {
		return
	}
	m.resolved.WithLabelValues(currency, "direct").Add(float64(stats.Direct))
	m.resolved.WithLabelValues(currency, "carried").Add(float64(stats.Carried))
	m.resolved.WithLabelValues(currency, "omitted").Add(float64(stats.Omitted))
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.reqDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
