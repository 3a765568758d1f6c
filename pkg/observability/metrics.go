package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every dupdetect metric.
const Namespace = "dupdetect"

// DetectionMetrics holds the Prometheus metrics for detection runs.
type DetectionMetrics struct {
	// Load metrics
	RecordsScanned *prometheus.GaugeVec
	FetchErrors    *prometheus.CounterVec

	// Detection metrics
	PairsDetected   *prometheus.CounterVec
	PhaseSeconds    *prometheus.HistogramVec
	SimilarityScore *prometheus.HistogramVec

	// Persistence metrics
	BatchesTotal   *prometheus.CounterVec
	PairsPersisted *prometheus.CounterVec
	PairsCleared   *prometheus.CounterVec

	// Run metrics
	RunsTotal        *prometheus.CounterVec
	RunSeconds       prometheus.Histogram
	LastRunTimestamp prometheus.Gauge
	LastRunSuccess   prometheus.Gauge
}

// NewDetectionMetrics registers detection metrics on reg.
func NewDetectionMetrics(reg prometheus.Registerer) *DetectionMetrics {
	factory := promauto.With(reg)

	return &DetectionMetrics{
		RecordsScanned: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "records_scanned",
				Help:      "Records loaded in the most recent run",
			},
			[]string{"entity_type"},
		),
		FetchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "fetch_errors_total",
				Help:      "Failed entity collection loads",
			},
			[]string{"entity_type"},
		),

		PairsDetected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "pairs_detected_total",
				Help:      "Pairs emitted per heuristic",
			},
			[]string{"entity_type", "detection_type", "confidence"},
		),
		PhaseSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "phase_duration_seconds",
				Help:      "Time spent in each run phase",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"entity_type", "phase"},
		),
		SimilarityScore: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "similarity_score",
				Help:      "Similarity scores of fuzzy matches",
				Buckets:   []float64{0.85, 0.875, 0.9, 0.925, 0.95, 0.975, 1.0},
			},
			[]string{"entity_type", "detection_type"},
		),

		BatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "upsert_batches_total",
				Help:      "Upsert batches by outcome",
			},
			[]string{"entity_type", "status"},
		),
		PairsPersisted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "pairs_persisted_total",
				Help:      "Pairs written to storage",
			},
			[]string{"entity_type"},
		),
		PairsCleared: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "pairs_cleared_total",
				Help:      "Stored pairs deleted by --clear",
			},
			[]string{"scope"},
		),

		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_total",
				Help:      "Detection runs by outcome",
			},
			[]string{"status"},
		),
		RunSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of a detection run",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600, 1800},
			},
		),
		LastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished",
			},
		),
		LastRunSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "last_run_success",
				Help:      "1 if the last run finished without fatal errors",
			},
		),
	}
}

// WriteTextfile writes everything gathered from g to path in the text
// exposition format, for the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
