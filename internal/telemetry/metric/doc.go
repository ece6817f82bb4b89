// Package metric provides Prometheus metrics for Sevault.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Prometheus registry and HTTP handler
//   - collector.go: Scrape-time collectors (slot occupancy)
//   - element.go: Instrumented secure-element wrapper
//
// Metrics include:
//
//   - Request latency histograms
//   - Operation counters by result code
//   - Secure-element command latencies and outcomes
//   - Slot occupancy gauges
//   - Audit and backup counters
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
