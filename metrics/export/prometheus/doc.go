// Package prometheus exposes core metrics as a [prometheus.Collector].
//
// [NewCollector] accepts a built core and reads a snapshot on every
// scrape. Counter names are prefixed authcore_*_total; the single
// histogram is authcore_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global default registry; callers register the
//     collector or mount [Collector.Handler].
//   - Mutate core state.
package prometheus
