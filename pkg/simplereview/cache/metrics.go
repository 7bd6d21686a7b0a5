package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes cache statistics to Prometheus
type Collector struct {
	cache *Cache

	hits    *prometheus.Desc
	misses  *prometheus.Desc
	entries *prometheus.Desc
	ratio   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector reading from c
func NewCollector(c *Cache, namespace string) *Collector {
	return &Collector{
		cache:   c,
		hits:    prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", "hits_total"), "Cache lookups served from a live entry.", nil, nil),
		misses:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", "misses_total"), "Cache lookups that required a computation.", nil, nil),
		entries: prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", "entries"), "Entries currently held.", nil, nil),
		ratio:   prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", "hit_ratio"), "Hits divided by lookups.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.entries
	ch <- c.ratio
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.cache.Stats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(stats.EntryCount))
	ch <- prometheus.MustNewConstMetric(c.ratio, prometheus.GaugeValue, stats.HitRate)
}
