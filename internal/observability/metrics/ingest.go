package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

// IngestMetrics implements ports.IngestObserver.
type IngestMetrics struct {
	service string

	filesTotal      *prometheus.CounterVec
	recordsInserted *prometheus.CounterVec
	recordErrors    *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	fileBytes       *prometheus.CounterVec
}

func NewIngestMetrics(service string, registry *prometheus.Registry) *IngestMetrics {
	filesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lite",
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Ingested artifact files by type and outcome.",
		},
		[]string{"service", "artifact_type", "status"},
	)
	recordsInserted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lite",
			Subsystem: "ingest",
			Name:      "records_inserted_total",
			Help:      "Records written to case tables.",
		},
		[]string{"service", "artifact_type"},
	)
	recordErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lite",
			Subsystem: "ingest",
			Name:      "record_errors_total",
			Help:      "Records that could not be stored.",
		},
		[]string{"service", "artifact_type"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lite",
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Per-file ingestion duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service", "status"},
	)
	fileBytes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lite",
			Subsystem: "ingest",
			Name:      "file_bytes_total",
			Help:      "Bytes of artifact files processed.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(filesTotal, recordsInserted, recordErrors, duration, fileBytes)

	return &IngestMetrics{
		service:         service,
		filesTotal:      filesTotal,
		recordsInserted: recordsInserted,
		recordErrors:    recordErrors,
		duration:        duration,
		fileBytes:       fileBytes,
	}
}

func (m *IngestMetrics) ObserveIngestion(artifactType string, success bool, stats domain.IngestStats, elapsed time.Duration) {
	if artifactType == "" {
		artifactType = "unknown"
	}
	status := "success"
	if !success {
		status = "failed"
	}

	m.filesTotal.WithLabelValues(m.service, artifactType, status).Inc()
	m.duration.WithLabelValues(m.service, status).Observe(elapsed.Seconds())
	m.fileBytes.WithLabelValues(m.service, status).Add(float64(stats.FileSize))
	if stats.InsertedRecords > 0 {
		m.recordsInserted.WithLabelValues(m.service, artifactType).Add(float64(stats.InsertedRecords))
	}
	if stats.Errors > 0 {
		m.recordErrors.WithLabelValues(m.service, artifactType).Add(float64(stats.Errors))
	}
}
