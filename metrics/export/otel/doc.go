// Package otel binds core metrics to OpenTelemetry observable
// instruments. A single registered callback reads a metrics snapshot
// on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate core state.
package otel
