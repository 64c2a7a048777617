// Package otel publishes service metrics as OpenTelemetry observable
// instruments.
//
// Counters map to Int64ObservableCounter. The validate latency histogram is
// exposed as cumulative bucket gauges keyed by an "le" attribute. One
// callback reads a snapshot per collection.
//
// The caller owns the MeterProvider.
package otel
