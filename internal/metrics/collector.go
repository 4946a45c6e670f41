// Package metrics exposes Prometheus instrumentation for the operational
// core. Counters are registered against an injected registry so tests can use
// an isolated one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the Prometheus metrics for the engine.
type Collector struct {
	FaultsCreated        *prometheus.CounterVec
	FaultTransitions     *prometheus.CounterVec
	TransitionRejections prometheus.Counter

	StockDebits       prometheus.Counter
	InsufficientStock prometheus.Counter
	LowStockFlags     prometheus.Counter

	NotificationsCreated *prometheus.CounterVec
	NotificationFailures prometheus.Counter
	AuditFailures        prometheus.Counter

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewCollector creates and registers the engine metrics.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		FaultsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netops_faults_created_total",
				Help: "Total number of faults created",
			},
			[]string{"priority"},
		),
		FaultTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netops_fault_transitions_total",
				Help: "Total number of fault status transitions",
			},
			[]string{"from", "to"},
		),
		TransitionRejections: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "netops_fault_transition_rejections_total",
				Help: "Total number of rejected fault status transitions",
			},
		),
		StockDebits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "netops_stock_debits_total",
				Help: "Total number of successful inventory debits",
			},
		),
		InsufficientStock: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "netops_insufficient_stock_total",
				Help: "Total number of debits rejected for insufficient stock",
			},
		),
		LowStockFlags: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "netops_low_stock_flags_total",
				Help: "Total number of debits that left an item at or below its minimum level",
			},
		),
		NotificationsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netops_notifications_created_total",
				Help: "Total number of notification rows created",
			},
			[]string{"type"},
		),
		NotificationFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "netops_notification_failures_total",
				Help: "Total number of swallowed notification insert failures",
			},
		),
		AuditFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "netops_audit_failures_total",
				Help: "Total number of swallowed audit insert failures",
			},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netops_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "netops_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}
