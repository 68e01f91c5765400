// Package metrics provides allocation-free atomic counters and latency
// histograms for the hot verification path. Exporters live under
// metrics/export.
package metrics
