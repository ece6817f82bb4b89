// Package metric provides Prometheus metrics for Sevault.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SlotUsageFunc reports secure-element slot occupancy.
type SlotUsageFunc func() (used, total int)

// SlotCollector exposes slot occupancy as gauges, reading the current
// values at scrape time instead of on a timer.
type SlotCollector struct {
	fn        SlotUsageFunc
	usedDesc  *prometheus.Desc
	totalDesc *prometheus.Desc
}

// NewSlotCollector creates a collector backed by fn.
func NewSlotCollector(fn SlotUsageFunc) *SlotCollector {
	return &SlotCollector{
		fn: fn,
		usedDesc: prometheus.NewDesc(
			namespace+"_element_slots_used",
			"Secure-element key slots currently holding a key",
			nil, nil,
		),
		totalDesc: prometheus.NewDesc(
			namespace+"_element_slots_total",
			"Secure-element key slots available in total",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *SlotCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.usedDesc
	ch <- c.totalDesc
}

// Collect implements prometheus.Collector.
func (c *SlotCollector) Collect(ch chan<- prometheus.Metric) {
	used, total := c.fn()
	ch <- prometheus.MustNewConstMetric(c.usedDesc, prometheus.GaugeValue, float64(used))
	ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.GaugeValue, float64(total))
}

// RegisterSlotUsage attaches a slot occupancy collector to the registry.
func (r *Registry) RegisterSlotUsage(fn SlotUsageFunc) {
	r.registry.MustRegister(NewSlotCollector(fn))
}
