package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	authcore "github.com/harborline/authcore"
	"github.com/harborline/authcore/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

type observedCounter struct {
	id         authcore.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter registers core metrics as OpenTelemetry observable
// instruments. Values are read from snapshots inside the collection
// callback; the decision path is never instrumented directly. The
// latency histogram is exposed as per-bucket cumulative gauges because
// the observable API has no histogram instrument.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	latBuckets   [8]metric.Int64ObservableGauge
	latCount     metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter
}

// NewExporter registers the core's metrics on the meter.
func NewExporter(meter metric.Meter, core *authcore.Core) (*Exporter, error) {
	return NewExporterFromSource(meter, core)
}

// NewExporterFromSource registers a custom source's metrics on the
// meter.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make([]observedCounter, 0, len(internaldefs.CounterDefs)),
	}
	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+len(e.latBuckets)+2)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for i, suffix := range internaldefs.VerifyLatencyBoundSuffix {
		name := internaldefs.VerifyLatencyName + "_bucket_le_" + suffix
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative latency bucket count."))
		if err != nil {
			return nil, fmt.Errorf("create latency bucket gauge %s: %w", name, err)
		}
		e.latBuckets[i] = ins
		observables = append(observables, ins)
	}
	latCount, err := meter.Int64ObservableGauge(
		internaldefs.VerifyLatencyName+"_count",
		metric.WithDescription("Latency histogram sample count."),
	)
	if err != nil {
		return nil, fmt.Errorf("create latency count gauge: %w", err)
	}
	e.latCount = latCount
	observables = append(observables, latCount)

	auditDropped, err := meter.Int64ObservableCounter(
		"authcore_audit_dropped_total",
		metric.WithDescription("Audit events shed under back-pressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snap := e.source.MetricsSnapshot()
		for _, c := range e.counters {
			observer.ObserveInt64(c.instrument, int64(snap.Counters[c.id]))
		}
		cumulative := internaldefs.CumulativeBuckets(snap.VerifyLatency.Buckets)
		for i := range cumulative {
			observer.ObserveInt64(e.latBuckets[i], int64(cumulative[i]))
		}
		observer.ObserveInt64(e.latCount, int64(snap.VerifyLatency.Count))
		observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration

	return e, nil
}

// Unregister removes the collection callback from the meter.
func (e *Exporter) Unregister() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
