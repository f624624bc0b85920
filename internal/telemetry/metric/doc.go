// Package metric provides Prometheus metrics for kubedash.
//
//   - prometheus.go: private registry, client collectors and HTTP handler
//   - collector.go: collector reading live gauges from the services
//
// Metrics include API request counts and latencies, response cache
// hits and misses, shared in-flight joins, storage fallback writes and
// auth lifecycle events. The mock backend serves them at /metrics.
package metric
