// Package metric holds the prometheus collectors for ingestion and the read API.
//
// Every recording method is safe on a nil *Metrics, so components can be
// built without metrics in tests and one-shot CLI commands.
package metric

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "farm_monitor"

// Metrics groups all collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	// Ingestion metrics
	FilesImported   *prometheus.CounterVec
	RowsProcessed   *prometheus.CounterVec
	SensorsUpserted prometheus.Counter
	ReadingsWritten *prometheus.CounterVec
	ImportDuration  prometheus.Histogram

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		FilesImported: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "files_total",
				Help:      "CSV files processed, by status",
			},
			[]string{"status"},
		),

		RowsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "rows_total",
				Help:      "CSV data rows read, by outcome (accepted or skipped)",
			},
			[]string{"outcome"},
		),

		SensorsUpserted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "sensors_upserted_total",
				Help:      "Sensor rows inserted or updated",
			},
		),

		ReadingsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "readings_total",
				Help:      "Readings offered to storage, by result (inserted or duplicate)",
			},
			[]string{"result"},
		),

		ImportDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "file_duration_seconds",
				Help:      "Time to parse and load one CSV file",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests served, by route and status code",
			},
			[]string{"route", "code"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.FilesImported,
		m.RowsProcessed,
		m.SensorsUpserted,
		m.ReadingsWritten,
		m.ImportDuration,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDBStats exports the connection pool statistics of db
func (m *Metrics) RegisterDBStats(db *sql.DB, name string) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(collectors.NewDBStatsCollector(db, name))
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ImportResult carries the counts of one file import
type ImportResult struct {
	Rows             int
	Skipped          int
	SensorsUpserted  int
	ReadingsInserted int
	Duplicates       int
	Duration         time.Duration
	Failed           bool
}

// ObserveImport records one file import
func (m *Metrics) ObserveImport(r ImportResult) {
	if m == nil {
		return
	}

	m.ImportDuration.Observe(r.Duration.Seconds())
	m.RowsProcessed.WithLabelValues("accepted").Add(float64(r.Rows - r.Skipped))
	m.RowsProcessed.WithLabelValues("skipped").Add(float64(r.Skipped))

	if r.Failed {
		m.FilesImported.WithLabelValues("failed").Inc()
		return
	}
	m.FilesImported.WithLabelValues("success").Inc()
	m.SensorsUpserted.Add(float64(r.SensorsUpserted))
	m.ReadingsWritten.WithLabelValues("inserted").Add(float64(r.ReadingsInserted))
	m.ReadingsWritten.WithLabelValues("duplicate").Add(float64(r.Duplicates))
}

// ObserveRequest records one HTTP request
func (m *Metrics) ObserveRequest(route, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, code).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
