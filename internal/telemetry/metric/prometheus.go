package metric

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kubedash"

// Registry holds all client metrics on a private Prometheus registry.
// A nil *Registry is valid and records nothing.
type Registry struct {
	registry *prometheus.Registry

	// API metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	InflightJoins   prometheus.Counter

	// Storage metrics
	StorageFallbackWrites prometheus.Counter
	StorageEvictions      prometheus.Counter

	// Auth metrics
	AuthEvents *prometheus.CounterVec

	// Mock backend metrics
	MockRequests *prometheus.CounterVec
}

// NewRegistry creates a registry with every client collector plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "API requests by HTTP method and outcome",
		}, []string{"method", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Latency of API requests that reached the transport",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "cache_hits_total",
			Help:      "Requests answered from the response cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "cache_misses_total",
			Help:      "Cacheable requests that missed the response cache",
		}),
		InflightJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "inflight_joins_total",
			Help:      "Requests that joined an identical in-flight call",
		}),
		StorageFallbackWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "fallback_writes_total",
			Help:      "Writes mirrored to memory after the persistent engine failed",
		}),
		StorageEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "evictions_total",
			Help:      "Expired entries removed on read or by cleanup",
		}),
		AuthEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "events_total",
			Help:      "Auth lifecycle events by type",
		}, []string{"event"}),
		MockRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mock",
			Name:      "requests_total",
			Help:      "Requests served by the mock backend",
		}, []string{"method", "status"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.RequestsTotal,
		r.RequestDuration,
		r.CacheHits,
		r.CacheMisses,
		r.InflightJoins,
		r.StorageFallbackWrites,
		r.StorageEvictions,
		r.AuthEvents,
		r.MockRequests,
	)
	return r
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Handler serves the global registry in Prometheus text format.
func Handler() http.Handler {
	return Global().Handler()
}

// Handler serves this registry in Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Register adds an extra collector, such as a storage engine's gauges.
func (r *Registry) Register(c prometheus.Collector) error {
	if r == nil {
		return nil
	}
	return r.registry.Register(c)
}

// Gatherer exposes the underlying registry for tests and exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordRequest counts one API request and, when d > 0, its latency.
func (r *Registry) RecordRequest(method, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(method, outcome).Inc()
	if d > 0 {
		r.RequestDuration.WithLabelValues(method).Observe(d.Seconds())
	}
}

// IncCacheHit counts a response cache hit.
func (r *Registry) IncCacheHit() {
	if r != nil {
		r.CacheHits.Inc()
	}
}

// IncCacheMiss counts a response cache miss.
func (r *Registry) IncCacheMiss() {
	if r != nil {
		r.CacheMisses.Inc()
	}
}

// IncInflightJoin counts a caller that shared another caller's request.
func (r *Registry) IncInflightJoin() {
	if r != nil {
		r.InflightJoins.Inc()
	}
}

// IncFallbackWrite counts a write mirrored into the memory fallback.
func (r *Registry) IncFallbackWrite() {
	if r != nil {
		r.StorageFallbackWrites.Inc()
	}
}

// AddEvictions counts expired storage entries removed.
func (r *Registry) AddEvictions(n int) {
	if r != nil && n > 0 {
		r.StorageEvictions.Add(float64(n))
	}
}

// RecordAuthEvent counts an auth lifecycle event (login, logout, refresh, ...).
func (r *Registry) RecordAuthEvent(event string) {
	if r != nil {
		r.AuthEvents.WithLabelValues(event).Inc()
	}
}

// RecordMockRequest counts one request served by the mock backend.
func (r *Registry) RecordMockRequest(method, status string) {
	if r != nil {
		r.MockRequests.WithLabelValues(method, status).Inc()
	}
}
