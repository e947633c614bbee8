// Package metrics provides Prometheus metrics for the tracker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal tracks handled API requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planetracker",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "planetracker",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// TelemetryReportsTotal tracks ingested device reports by outcome
	TelemetryReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planetracker",
			Subsystem: "telemetry",
			Name:      "reports_total",
			Help:      "Total number of device reports by outcome",
		},
		[]string{"outcome"},
	)

	DevicesDiscoveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "planetracker",
			Subsystem: "telemetry",
			Name:      "devices_discovered_total",
			Help:      "Total number of devices created on first contact",
		},
	)

	// ExportRowsTotal tracks session rows written to CSV exports
	ExportRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "planetracker",
			Subsystem: "export",
			Name:      "rows_total",
			Help:      "Total number of session rows exported",
		},
	)
)

// RecordHTTPRequest records a handled HTTP request
func RecordHTTPRequest(method, route, statusCode string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// RecordReport records the outcome of one device report
func RecordReport(outcome string, deviceCreated bool) {
	TelemetryReportsTotal.WithLabelValues(outcome).Inc()
	if deviceCreated {
		DevicesDiscoveredTotal.Inc()
	}
}

func RecordExport(rows int) {
	ExportRowsTotal.Add(float64(rows))
}
