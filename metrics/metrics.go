// Package metrics exposes prometheus collectors for backend calls and polling.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for gateway requests
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport_error"
	OutcomeBackend   = "backend_error"
	OutcomeDecode    = "decode_error"
	OutcomeSkipped   = "skipped"
)

// Collector owns a private registry so several instances can coexist in one process
type Collector struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	pollTicks *prometheus.CounterVec
	jobs      *prometheus.GaugeVec
}

// New creates a collector with its metrics registered
func New() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mediafetch_gateway_requests_total",
			Help: "Total number of backend calls by operation and outcome",
		}, []string{"op", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mediafetch_gateway_request_duration_seconds",
			Help:    "Duration of backend calls in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		pollTicks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mediafetch_poll_ticks_total",
			Help: "Total number of job poll ticks by result",
		}, []string{"result"}),
		jobs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mediafetch_jobs",
			Help: "Jobs in the last polled list by status",
		}, []string{"status"}),
	}
}

// ObserveRequest records one backend call
func (c *Collector) ObserveRequest(op, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(op, outcome).Inc()
	if outcome != OutcomeSkipped {
		c.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
}

// ObservePoll records the result of one poll tick
func (c *Collector) ObservePoll(err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.pollTicks.WithLabelValues(result).Inc()
}

// SetJobs replaces the per-status job gauge
func (c *Collector) SetJobs(counts map[string]int) {
	if c == nil {
		return
	}
	c.jobs.Reset()
	for status, n := range counts {
		c.jobs.WithLabelValues(status).Set(float64(n))
	}
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector in the prometheus text format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
