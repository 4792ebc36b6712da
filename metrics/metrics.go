// Package metrics wires the core's bucket/source operations to Prometheus
// collectors, in the style of the per-backend counters registered by
// cmd/utahfs-server and cmd/utahfs-client in the upstream project this repo
// grew out of: one CounterVec per concern, labeled by bucket and operation,
// plus a latency histogram. Nothing in this package starts an HTTP server
// or registers a scrape route -- mounting /metrics is the excluded front
// end's job. A nil *Registry is valid and makes every observation a no-op,
// so callers never need to nil-check before instrumenting.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the collectors for one process. Register it with a
// prometheus.Registerer (or the default registry) if a front end wants to
// expose it.
type Registry struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewRegistry builds a Registry and registers its collectors with reg. Pass
// prometheus.DefaultRegisterer to use the global registry, or nil to build
// the collectors without registering them (useful in tests).
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkdrive_bucket_requests_total",
			Help: "Number of bucket operations, by bucket and operation.",
		}, []string{"bucket", "op"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkdrive_bucket_errors_total",
			Help: "Number of failed bucket operations, by bucket, operation, and error kind.",
		}, []string{"bucket", "op", "kind"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chunkdrive_bucket_bytes_total",
			Help: "Bytes moved through bucket operations, by bucket and operation.",
		}, []string{"bucket", "op"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chunkdrive_bucket_latency_seconds",
			Help:    "Latency of bucket operations, by bucket and operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"bucket", "op"}),
	}
	if reg != nil {
		reg.MustRegister(r.requests, r.errors, r.bytes, r.latency)
	}
	return r
}

// Observe records one bucket operation. kind is the empty string on
// success, or an Error.Kind.String() on failure.
func (r *Registry) Observe(bucket, op string, n int, kind string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(bucket, op).Inc()
	r.bytes.WithLabelValues(bucket, op).Add(float64(n))
	r.latency.WithLabelValues(bucket, op).Observe(elapsed.Seconds())
	if kind != "" {
		r.errors.WithLabelValues(bucket, op, kind).Inc()
	}
}
