// Package metric provides Prometheus metrics for Sevault.
//
// It exposes metrics in Prometheus format for monitoring request
// rates, operation outcomes, secure-element latencies, and system
// health.
package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// namespace prefixes every metric this package registers.
const namespace = "sevault"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Operation metrics: one series per vault operation and result code,
	// so auth failures, validation rejects and crypto failures can be
	// told apart per operation.
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Secure element metrics
	ElementCommandsTotal   *prometheus.CounterVec
	ElementCommandDuration *prometheus.HistogramVec
	ElementUp              prometheus.Gauge

	// Auth and rate limit metrics
	AuthFailuresTotal prometheus.Counter
	RateLimitedTotal  prometheus.Counter

	// Audit metrics
	AuditRecordsTotal prometheus.Counter
	AuditErrorsTotal  prometheus.Counter

	// Backup metrics
	BackupsTotal   prometheus.Counter
	LastBackupTime prometheus.Gauge
	RestoresTotal  prometheus.Counter
}

// NewRegistry creates a new metrics registry with all application
// metrics registered, plus the standard Go runtime and process
// collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served",
		}),

		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total vault operations by operation and result code",
		}, []string{"op", "code"}),

		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Vault operation latency by operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),

		ElementCommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "element",
			Name:      "commands_total",
			Help:      "Total secure-element commands by command and status",
		}, []string{"command", "status"}),

		ElementCommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "element",
			Name:      "command_duration_seconds",
			Help:      "Secure-element command latency by command",
			// Element commands are sub-millisecond to tens of
			// milliseconds; the default buckets start too coarse.
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"command"}),

		ElementUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "element",
			Name:      "up",
			Help:      "Whether the secure element is reachable (1) or not (0)",
		}),

		AuthFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Total rejected authentication attempts",
		}),

		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the rate limiter",
		}),

		AuditRecordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "records_total",
			Help:      "Total audit records written",
		}),

		AuditErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "errors_total",
			Help:      "Total audit write failures",
		}),

		BackupsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "created_total",
			Help:      "Total backups created",
		}),

		LastBackupTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "last_created_timestamp_seconds",
			Help:      "Unix timestamp of the last successful backup",
		}),

		RestoresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "restores_total",
			Help:      "Total restores performed",
		}),
	}

	reg.MustRegister(
		r.RequestsTotal,
		r.RequestDuration,
		r.RequestsInFlight,
		r.OperationsTotal,
		r.OperationDuration,
		r.ElementCommandsTotal,
		r.ElementCommandDuration,
		r.ElementUp,
		r.AuthFailuresTotal,
		r.RateLimitedTotal,
		r.AuditRecordsTotal,
		r.AuditErrorsTotal,
		r.BackupsTotal,
		r.LastBackupTime,
		r.RestoresTotal,
	)

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Prometheus returns the underlying registry so components that
// register their own metrics (the storage engine, custom collectors)
// can attach to the same endpoint.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed HTTP request.
func (r *Registry) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	r.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveOperation records one completed vault operation. code is the
// result code returned to the caller ("ok" for success, the SV error
// code otherwise).
func (r *Registry) ObserveOperation(op, code string, elapsed time.Duration) {
	r.OperationsTotal.WithLabelValues(op, code).Inc()
	r.OperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveElementCommand records one secure-element command.
func (r *Registry) ObserveElementCommand(command, status string, elapsed time.Duration) {
	r.ElementCommandsTotal.WithLabelValues(command, status).Inc()
	r.ElementCommandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}
