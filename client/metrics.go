package client

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a download run.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	BytesTotal      prometheus.Counter
	FilesTotal      prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	ReportsTotal    *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_requests_total",
			Help: "Total HTTP requests issued, by phase (resolve or fetch).",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "copilot_request_duration_seconds",
			Help:    "HTTP request latency, including body transfer for fetches.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)
	bytesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "copilot_bytes_downloaded_total",
			Help: "Total report payload bytes written to disk.",
		},
	)
	filesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "copilot_files_downloaded_total",
			Help: "Total report files written to disk.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_errors_total",
			Help: "Total number of errors by type.",
		},
		[]string{"error_type"},
	)
	reportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_reports_total",
			Help: "Report types processed, by outcome.",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(requests, requestDuration, bytesTotal, filesTotal, errorsTotal, reportsTotal)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		BytesTotal:      bytesTotal,
		FilesTotal:      filesTotal,
		ErrorsTotal:     errorsTotal,
		ReportsTotal:    reportsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// AddFile records one written file of n bytes.
func (m *Metrics) AddFile(n int64) {
	if m == nil {
		return
	}
	m.FilesTotal.Inc()
	m.BytesTotal.Add(float64(n))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncReport increments the report counter for an outcome label.
func (m *Metrics) IncReport(outcome string) {
	if m == nil {
		return
	}
	m.ReportsTotal.WithLabelValues(outcome).Inc()
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
