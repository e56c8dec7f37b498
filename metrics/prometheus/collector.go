// Package prometheus exposes filter metrics through the Prometheus client.
//
//	c := prometheus.New(prometheus.WithNamespace("myapp"))
//	registry.MustRegister(c)
//
//	f, err := bloomfilter.NewString(0.001, 1_000_000, bloomfilter.WithMetricsCollector(c))
package prometheus

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/bloomfilter"
)

const subsystem = "bloomfilter"

var _ bloomfilter.MetricsCollector = (*Collector)(nil)
var _ prom.Collector = (*Collector)(nil)

// Option configures a Collector.
type Option func(*options)

type options struct {
	namespace   string
	constLabels prom.Labels
	buckets     []float64
}

// WithNamespace sets the metric namespace.
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithConstLabels attaches constant labels to every metric.
func WithConstLabels(labels prom.Labels) Option {
	return func(o *options) {
		o.constLabels = labels
	}
}

// WithBuckets sets the histogram buckets for save and load latency.
func WithBuckets(buckets []float64) Option {
	return func(o *options) {
		o.buckets = buckets
	}
}

// Collector implements bloomfilter.MetricsCollector on Prometheus metrics.
// It is itself a prometheus.Collector, so it can be registered directly.
type Collector struct {
	adds          prom.Counter
	contains      *prom.CounterVec
	saves         *prom.CounterVec
	saveBytes     prom.Counter
	saveDuration  prom.Histogram
	loads         *prom.CounterVec
	loadDuration  prom.Histogram
	collectorList []prom.Collector
}

// New creates a Collector.
func New(optFns ...Option) *Collector {
	o := options{buckets: prom.DefBuckets}
	for _, fn := range optFns {
		fn(&o)
	}

	c := &Collector{
		adds: prom.NewCounter(prom.CounterOpts{
			Namespace:   o.namespace,
			Subsystem:   subsystem,
			Name:        "adds_total",
			Help:        "Number of keys added.",
			ConstLabels: o.constLabels,
		}),
		contains: prom.NewCounterVec(prom.CounterOpts{
			Namespace:   o.namespace,
			Subsystem:   subsystem,
			Name:        "contains_total",
			Help:        "Number of membership tests by result.",
			ConstLabels: o.constLabels,
		}, []string{"result"}),
		saves: prom.NewCounterVec(prom.CounterOpts{
			Namespace:   o.namespace,
			Subsystem:   subsystem,
			Name:        "saves_total",
			Help:        "Number of saves by status.",
			ConstLabels: o.constLabels,
		}, []string{"status"}),
		saveBytes: prom.NewCounter(prom.CounterOpts{
			Namespace:   o.namespace,
			Subsystem:   subsystem,
			Name:        "save_bytes_total",
			Help:        "Bytes written by successful saves.",
			ConstLabels: o.constLabels,
		}),
		saveDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace:   o.namespace,
			Subsystem:   subsystem,
			Name:        "save_duration_seconds",
			Help:        "Save latency.",
			ConstLabels: o.constLabels,
			Buckets:     o.buckets,
		}),
		loads: prom.NewCounterVec(prom.CounterOpts{
			Namespace:   o.namespace,
			Subsystem:   subsystem,
			Name:        "loads_total",
			Help:        "Number of loads by stream format and status.",
			ConstLabels: o.constLabels,
		}, []string{"format", "status"}),
		loadDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace:   o.namespace,
			Subsystem:   subsystem,
			Name:        "load_duration_seconds",
			Help:        "Load latency.",
			ConstLabels: o.constLabels,
			Buckets:     o.buckets,
		}),
	}

	c.collectorList = []prom.Collector{
		c.adds, c.contains, c.saves, c.saveBytes, c.saveDuration, c.loads, c.loadDuration,
	}

	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prom.Desc) {
	for _, m := range c.collectorList {
		m.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prom.Metric) {
	for _, m := range c.collectorList {
		m.Collect(ch)
	}
}

// RecordAdd implements bloomfilter.MetricsCollector.
func (c *Collector) RecordAdd() {
	c.adds.Inc()
}

// RecordContains implements bloomfilter.MetricsCollector.
func (c *Collector) RecordContains(hit bool) {
	if hit {
		c.contains.WithLabelValues("hit").Inc()
		return
	}
	c.contains.WithLabelValues("miss").Inc()
}

// RecordSave implements bloomfilter.MetricsCollector.
func (c *Collector) RecordSave(bytes int64, d time.Duration, err error) {
	c.saveDuration.Observe(d.Seconds())
	if err != nil {
		c.saves.WithLabelValues("error").Inc()
		return
	}
	c.saves.WithLabelValues("ok").Inc()
	c.saveBytes.Add(float64(bytes))
}

// RecordLoad implements bloomfilter.MetricsCollector.
func (c *Collector) RecordLoad(version int, d time.Duration, err error) {
	c.loadDuration.Observe(d.Seconds())

	status := "ok"
	if err != nil {
		status = "error"
	}
	c.loads.WithLabelValues(formatLabel(version), status).Inc()
}

func formatLabel(version int) string {
	switch version {
	case 1:
		return "legacy"
	case 2:
		return "v2"
	default:
		return "unknown"
	}
}
