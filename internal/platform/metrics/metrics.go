// Package metrics exposes Prometheus collectors for the routing core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is safe to use as a nil pointer; every method becomes a no-op.
type Collector struct {
	registry *prometheus.Registry

	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	selectionsTotal *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	backoffDuration prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewCollector registers all collectors on a fresh registry under namespace.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "router_attempts_total",
				Help:      "Dispatch attempts by operation, deployment and outcome",
			},
			[]string{"operation", "deployment", "outcome"},
		),
		attemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "router_attempt_duration_seconds",
				Help:      "Wall-clock duration of successful dispatches",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"operation", "deployment"},
		),
		selectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "router_selections_total",
				Help:      "Deployments chosen by each selection strategy",
			},
			[]string{"strategy", "deployment"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "router_requests_total",
				Help:      "Terminal request outcomes",
			},
			[]string{"operation", "status"},
		),
		backoffDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "router_backoff_seconds",
				Help:      "Delay slept between retry attempts",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
			},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedding_cache_lookups_total",
				Help:      "Embedding cache lookups by result",
			},
			[]string{"result"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

func (c *Collector) RecordAttempt(operation, deployment, outcome string) {
	if c == nil {
		return
	}
	c.attemptsTotal.WithLabelValues(operation, deployment, outcome).Inc()
}

func (c *Collector) RecordLatency(operation, deployment string, d time.Duration) {
	if c == nil {
		return
	}
	c.attemptDuration.WithLabelValues(operation, deployment).Observe(d.Seconds())
}

func (c *Collector) RecordSelection(strategy, deployment string) {
	if c == nil {
		return
	}
	c.selectionsTotal.WithLabelValues(strategy, deployment).Inc()
}

func (c *Collector) RecordRequest(operation, status string) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(operation, status).Inc()
}

func (c *Collector) RecordBackoff(d time.Duration) {
	if c == nil {
		return
	}
	c.backoffDuration.Observe(d.Seconds())
}

func (c *Collector) RecordCacheLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

func (c *Collector) RecordHTTPRequest(method, path string, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, path, status).Inc()
	c.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
