// Package audit implements the internal audit event model and the
// asynchronous dispatcher that shields authorization decisions from
// slow or failing sinks.
package audit
