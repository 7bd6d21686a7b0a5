package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes queue counters to Prometheus
type Collector struct {
	queue *Queue
	tasks *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector reading from q
func NewCollector(q *Queue, namespace string) *Collector {
	return &Collector{
		queue: q,
		tasks: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "worker", "tasks_total"),
			"Background tasks by outcome.",
			[]string{"outcome"}, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tasks
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.queue.Stats()
	ch <- prometheus.MustNewConstMetric(c.tasks, prometheus.CounterValue, float64(s.Submitted), "submitted")
	ch <- prometheus.MustNewConstMetric(c.tasks, prometheus.CounterValue, float64(s.Succeeded), "succeeded")
	ch <- prometheus.MustNewConstMetric(c.tasks, prometheus.CounterValue, float64(s.Failed), "failed")
	ch <- prometheus.MustNewConstMetric(c.tasks, prometheus.CounterValue, float64(s.Rejected), "rejected")
	ch <- prometheus.MustNewConstMetric(c.tasks, prometheus.CounterValue, float64(s.Retries), "retried")
}
