// Package prom provides a Prometheus implementation of
// fusego.MetricsCollector.
package prom

import (
	"time"

	"github.com/fusego/fusego"
	"github.com/prometheus/client_golang/prometheus"
)

// Compile time check to ensure Collector satisfies the
// fusego.MetricsCollector interface.
var _ fusego.MetricsCollector = (*Collector)(nil)

// Collector exports engine metrics to Prometheus.
type Collector struct {
	opLatency   *prometheus.HistogramVec
	indexedDocs prometheus.Gauge
	embeds      *prometheus.CounterVec
	searches    *prometheus.CounterVec
}

// NewCollector creates a collector and registers its metrics with the
// given registerer. Pass prometheus.DefaultRegisterer for the default
// registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fusego_operation_latency_seconds",
			Help:    "Latency of engine operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
		indexedDocs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fusego_indexed_documents",
			Help: "Number of documents in the indexed corpus",
		}),
		embeds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fusego_embeds_total",
			Help: "Total embedding lookups",
		}, []string{"source", "status"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fusego_searches_total",
			Help: "Total hybrid searches",
		}, []string{"strategy", "status"}),
	}

	reg.MustRegister(c.opLatency, c.indexedDocs, c.embeds, c.searches)

	return c
}

// RecordIndex implements fusego.MetricsCollector.
func (c *Collector) RecordIndex(docs int, duration time.Duration, err error) {
	c.opLatency.WithLabelValues("index", status(err)).Observe(duration.Seconds())
	if err == nil {
		c.indexedDocs.Set(float64(docs))
	}
}

// RecordEmbed implements fusego.MetricsCollector.
func (c *Collector) RecordEmbed(cacheHit bool, duration time.Duration, err error) {
	source := "embedder"
	if cacheHit {
		source = "cache"
	}

	c.embeds.WithLabelValues(source, status(err)).Inc()
	c.opLatency.WithLabelValues("embed", status(err)).Observe(duration.Seconds())
}

// RecordSearch implements fusego.MetricsCollector.
func (c *Collector) RecordSearch(_ int, strategy string, duration time.Duration, err error) {
	c.searches.WithLabelValues(strategy, status(err)).Inc()
	c.opLatency.WithLabelValues("search", status(err)).Observe(duration.Seconds())
}

// RecordSnapshot implements fusego.MetricsCollector.
func (c *Collector) RecordSnapshot(op string, duration time.Duration, err error) {
	c.opLatency.WithLabelValues("snapshot_"+op, status(err)).Observe(duration.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}
