// Package prometheus publishes service metrics through
// github.com/prometheus/client_golang.
//
// [Exporter] is a Collector that converts each scrape's snapshot into const
// metrics. Counters are authcore_*_total; validate latency is the histogram
// authcore_validate_latency_seconds with a zero sum.
package prometheus
