package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter or histogram slot.
type MetricID uint8

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricTokenIssued
	MetricTokenVerifyFailure
	MetricTokenRevoked
	MetricRevokedTokenSeen
	MetricRefreshRotated
	MetricRefreshReuseDetected
	MetricAdminTokenIssued
	MetricAdminTokenDeniedMFA
	MetricPermissionAllowed
	MetricPermissionDenied
	MetricSessionCreated
	MetricSessionEvicted
	MetricSessionInvalidated
	MetricSessionExpired
	MetricMFASetupStarted
	MetricMFAVerifySuccess
	MetricMFAVerifyFailure
	MetricMFARateLimited
	MetricBackupCodeUsed
	MetricVerifyLatency

	MetricIDCount
)

// Histogram bucket upper bounds for verification latency, in
// microseconds. The last bucket is +Inf.
var LatencyBoundsMicros = [7]int64{50, 100, 250, 500, 1000, 5000, 25000}

// Config controls which metric families are recorded.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

type histogram struct {
	buckets [8]atomic.Uint64
	count   atomic.Uint64
	sum     atomic.Uint64
}

// Metrics holds lock-free counters and optional latency histograms.
// All operations are no-ops when disabled.
type Metrics struct {
	enabled bool
	latency bool

	counters  [MetricIDCount]atomic.Uint64
	verifyLat histogram
}

// HistogramSnapshot is a point-in-time copy of one histogram.
type HistogramSnapshot struct {
	Buckets   [8]uint64
	Count     uint64
	SumMicros uint64
}

// Snapshot is a point-in-time deep copy of all metrics.
type Snapshot struct {
	Counters       [MetricIDCount]uint64
	VerifyLatency  HistogramSnapshot
	LatencyEnabled bool
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatency,
	}
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Observe records a verification latency sample.
func (m *Metrics) Observe(d time.Duration) {
	if m == nil || !m.latency {
		return
	}
	micros := d.Microseconds()
	if micros < 0 {
		micros = 0
	}

	idx := len(LatencyBoundsMicros)
	for i, bound := range LatencyBoundsMicros {
		if micros <= bound {
			idx = i
			break
		}
	}

	m.verifyLat.buckets[idx].Add(1)
	m.verifyLat.count.Add(1)
	m.verifyLat.sum.Add(uint64(micros))
}

func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

func (m *Metrics) Snapshot() Snapshot {
	var snap Snapshot
	if m == nil || !m.enabled {
		return snap
	}

	for i := range snap.Counters {
		snap.Counters[i] = m.counters[i].Load()
	}

	snap.LatencyEnabled = m.latency
	if m.latency {
		for i := range snap.VerifyLatency.Buckets {
			snap.VerifyLatency.Buckets[i] = m.verifyLat.buckets[i].Load()
		}
		snap.VerifyLatency.Count = m.verifyLat.count.Load()
		snap.VerifyLatency.SumMicros = m.verifyLat.sum.Load()
	}

	return snap
}
