package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authcore "github.com/harborline/authcore"
	"github.com/harborline/authcore/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

// Collector exposes core metrics through a [prometheus.Collector].
// It reads snapshots on scrape and holds no state of its own, so one
// collector per core is enough and scrapes never contend with the
// decision path.
type Collector struct {
	source       metricsSource
	counterDescs []*prometheus.Desc
	latencyDesc  *prometheus.Desc
	droppedDesc  *prometheus.Desc
}

// NewCollector creates a collector reading from the given core.
func NewCollector(core *authcore.Core) *Collector {
	return NewCollectorFromSource(core)
}

// NewCollectorFromSource creates a collector from a custom source,
// for tests and wrappers.
func NewCollectorFromSource(source metricsSource) *Collector {
	c := &Collector{
		source:       source,
		counterDescs: make([]*prometheus.Desc, len(internaldefs.CounterDefs)),
		latencyDesc:  prometheus.NewDesc(internaldefs.VerifyLatencyName, internaldefs.VerifyLatencyHelp, nil, nil),
		droppedDesc:  prometheus.NewDesc("authcore_audit_dropped_total", "Audit events shed under back-pressure.", nil, nil),
	}
	for i, def := range internaldefs.CounterDefs {
		c.counterDescs[i] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range c.counterDescs {
		ch <- desc
	}
	ch <- c.latencyDesc
	ch <- c.droppedDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.source == nil {
		return
	}
	snap := c.source.MetricsSnapshot()

	for i, def := range internaldefs.CounterDefs {
		ch <- prometheus.MustNewConstMetric(c.counterDescs[i], prometheus.CounterValue, float64(snap.Counters[def.ID]))
	}

	if snap.LatencyEnabled {
		cumulative := internaldefs.CumulativeBuckets(snap.VerifyLatency.Buckets)
		buckets := make(map[float64]uint64, len(internaldefs.VerifyLatencyBoundsSeconds))
		for i, bound := range internaldefs.VerifyLatencyBoundsSeconds {
			buckets[bound] = cumulative[i]
		}
		sum := float64(snap.VerifyLatency.SumMicros) / 1e6
		ch <- prometheus.MustNewConstHistogram(c.latencyDesc, snap.VerifyLatency.Count, sum, buckets)
	}

	ch <- prometheus.MustNewConstMetric(c.droppedDesc, prometheus.CounterValue, float64(c.source.AuditDropped()))
}

// Handler returns an http.Handler serving this collector on a private
// registry, for callers without their own.
func (c *Collector) Handler() http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(c)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
