// Package observability exports ringvec metrics to Prometheus.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/ringvec"
)

const namespace = "ringvec"

// Collector implements ringvec.MetricsCollector on Prometheus metrics.
type Collector struct {
	opLatency *prometheus.HistogramVec
	ops       *prometheus.CounterVec
	items     *prometheus.CounterVec
	searchK   prometheus.Histogram
}

var _ ringvec.MetricsCollector = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of store operations",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"op", "status"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total store operations",
		}, []string{"op", "status"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_total",
			Help:      "Records submitted through batch inserts",
		}, []string{"status"}),
		searchK: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_k",
			Help:      "Requested neighbor count per search",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250},
		}),
	}

	reg.MustRegister(c.opLatency, c.ops, c.items, c.searchK)
	return c
}

// RecordInsert implements ringvec.MetricsCollector.
func (c *Collector) RecordInsert(d time.Duration, err error) {
	c.observe("insert", d, status(err != nil))
}

// RecordBatchInsert implements ringvec.MetricsCollector.
func (c *Collector) RecordBatchInsert(count, failed int, d time.Duration) {
	c.observe("batch_insert", d, status(failed > 0))
	c.items.WithLabelValues("success").Add(float64(count - failed))
	c.items.WithLabelValues("error").Add(float64(failed))
}

// RecordSearch implements ringvec.MetricsCollector.
func (c *Collector) RecordSearch(k int, d time.Duration, err error) {
	c.observe("search", d, status(err != nil))
	c.searchK.Observe(float64(k))
}

func (c *Collector) observe(op string, d time.Duration, status string) {
	c.opLatency.WithLabelValues(op, status).Observe(d.Seconds())
	c.ops.WithLabelValues(op, status).Inc()
}

func status(failed bool) string {
	if failed {
		return "error"
	}
	return "success"
}

// RegisterStore exports occupancy gauges for s. The gauges are evaluated on
// every scrape.
func RegisterStore(reg prometheus.Registerer, s *ringvec.Store) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Live records across all shards",
		}, func() float64 { return float64(s.Len()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capacity_records",
			Help:      "Maximum number of retained records",
		}, func() float64 { return float64(s.Stats().Capacity) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inserts_total",
			Help:      "Records ever inserted, including overwritten ones",
		}, func() float64 { return float64(s.Stats().Inserts) }),
	}

	for _, g := range gauges {
		if err := reg.Register(g); err != nil {
			return err
		}
	}
	return nil
}
