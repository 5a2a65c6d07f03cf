package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// AttendanceMetrics covers matching and the attendance session state machine.
type AttendanceMetrics struct {
	operationsTotal *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	matchDistance   *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	openSessions    prometheus.Gauge

	collectors []prometheus.Collector
}

// NewAttendanceMetrics creates and registers attendance metrics.
func NewAttendanceMetrics(registry *prometheus.Registry) (*AttendanceMetrics, error) {
	m := &AttendanceMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register attendance metrics: %w", err)
	}
	return m, nil
}

func (m *AttendanceMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_attendance_operations_total",
			Help: "Attendance operations by outcome",
		},
		[]string{"operation", "status"}, // e.g. authenticate/matched, mark/present
	)

	m.durationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rollcall_attendance_duration_seconds",
			Help:    "Time taken by attendance operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount15), // 10ms to ~160s
		},
		[]string{"operation"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_attendance_errors_total",
			Help: "Attendance errors by category",
		},
		[]string{"operation", "error_type"},
	)

	m.matchDistance = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rollcall_match_distance",
			Help:    "Euclidean distance of the closest candidate",
			Buckets: prometheus.LinearBuckets(0, DistanceBucketWidth, DistanceBucketCount),
		},
		[]string{"role"},
	)

	m.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_session_transitions_total",
			Help: "Session state machine transitions",
		},
		[]string{"from", "to"},
	)

	m.openSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rollcall_sessions_open",
		Help: "Sessions currently open on this instance",
	})

	m.collectors = []prometheus.Collector{
		m.operationsTotal,
		m.durationSeconds,
		m.errorsTotal,
		m.matchDistance,
		m.transitions,
		m.openSessions,
	}
}

// Describe implements the Collector interface
func (m *AttendanceMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *AttendanceMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// ObserveMatchDistance records the best candidate distance for a role.
func (m *AttendanceMetrics) ObserveMatchDistance(role string, distance float64) {
	m.matchDistance.WithLabelValues(role).Observe(distance)
}

// RecordTransition counts a state change and tracks open sessions.
func (m *AttendanceMetrics) RecordTransition(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
	switch to {
	case "session_open":
		m.openSessions.Inc()
	case "session_closed":
		m.openSessions.Dec()
	}
}

// RecordOperation implements the Recorder interface.
func (m *AttendanceMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements the Recorder interface.
func (m *AttendanceMetrics) RecordDuration(operation string, seconds float64) {
	m.durationSeconds.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements the Recorder interface.
func (m *AttendanceMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}
