package metric

import "github.com/prometheus/client_golang/prometheus"

// Source reports live values that are cheaper to read on scrape than to
// track on every change.
type Source interface {
	CacheLen() int
	IsAuthenticated() bool
}

// Collector exposes a Source as gauges.
type Collector struct {
	src Source

	cacheEntries  *prometheus.Desc
	authenticated *prometheus.Desc
}

// NewCollector creates a collector reading from src.
func NewCollector(src Source) *Collector {
	return &Collector{
		src: src,
		cacheEntries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "api", "cache_entries"),
			"Entries currently held in the response cache",
			nil, nil,
		),
		authenticated: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "auth", "authenticated"),
			"1 while a session is authenticated",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cacheEntries
	ch <- c.authenticated
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.cacheEntries, prometheus.GaugeValue, float64(c.src.CacheLen()))

	var authed float64
	if c.src.IsAuthenticated() {
		authed = 1
	}
	ch <- prometheus.MustNewConstMetric(c.authenticated, prometheus.GaugeValue, authed)
}
