// Package internaldefs holds the metric name and bucket definitions
// shared by the exporter implementations, so Prometheus and OTel
// always expose identical names and boundaries.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
