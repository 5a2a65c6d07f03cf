package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// CaptureMetrics covers the capture and encode pipeline and the extractor.
type CaptureMetrics struct {
	roundsTotal      *prometheus.CounterVec
	operationsTotal  *prometheus.CounterVec
	durationSeconds  *prometheus.HistogramVec
	errorsTotal      *prometheus.CounterVec
	aggregateSamples prometheus.Histogram

	collectors []prometheus.Collector
}

// NewCaptureMetrics creates and registers capture metrics.
func NewCaptureMetrics(registry *prometheus.Registry) (*CaptureMetrics, error) {
	m := &CaptureMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register capture metrics: %w", err)
	}
	return m, nil
}

func (m *CaptureMetrics) initMetrics() {
	m.roundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_capture_rounds_total",
			Help: "Capture rounds by outcome",
		},
		[]string{"status"}, // ok, empty, error
	)

	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_capture_operations_total",
			Help: "Capture and extraction operations by outcome",
		},
		[]string{"operation", "status"},
	)

	m.durationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rollcall_capture_duration_seconds",
			Help:    "Time taken by capture and extraction operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~16s
		},
		[]string{"operation"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_capture_errors_total",
			Help: "Capture errors by category",
		},
		[]string{"operation", "error_type"},
	)

	m.aggregateSamples = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rollcall_capture_aggregate_samples",
		Help:    "Number of vectors averaged into one aggregate",
		Buckets: prometheus.LinearBuckets(1, 1, BucketCount12),
	})

	m.collectors = []prometheus.Collector{
		m.roundsTotal,
		m.operationsTotal,
		m.durationSeconds,
		m.errorsTotal,
		m.aggregateSamples,
	}
}

// Describe implements the Collector interface
func (m *CaptureMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *CaptureMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// ObserveAggregateSamples records how many vectors went into an aggregate.
func (m *CaptureMetrics) ObserveAggregateSamples(n int) {
	m.aggregateSamples.Observe(float64(n))
}

// RecordOperation implements the Recorder interface. Capture rounds are
// also counted on their own series.
func (m *CaptureMetrics) RecordOperation(operation, status string) {
	if operation == OpCaptureRound {
		m.roundsTotal.WithLabelValues(status).Inc()
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements the Recorder interface.
func (m *CaptureMetrics) RecordDuration(operation string, seconds float64) {
	m.durationSeconds.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements the Recorder interface.
func (m *CaptureMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}
