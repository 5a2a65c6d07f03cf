package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for gateway and SQL operations.
type DatastoreMetrics struct {
	operationsTotal *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	queriesTotal    *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec

	collectors []prometheus.Collector
}

// NewDatastoreMetrics creates and registers new datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_datastore_operations_total",
			Help: "Total number of gateway operations",
		},
		[]string{"operation", "status"}, // status: ok, error, duplicate
	)

	m.durationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rollcall_datastore_operation_duration_seconds",
			Help:    "Time taken for gateway operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~16s
		},
		[]string{"operation"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_datastore_errors_total",
			Help: "Total number of gateway errors",
		},
		[]string{"operation", "error_type"},
	)

	m.queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollcall_datastore_queries_total",
			Help: "SQL statements executed, by verb",
		},
		[]string{"verb", "status"},
	)

	m.queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rollcall_datastore_query_duration_seconds",
			Help:    "SQL statement latency, by verb",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms/10, BucketFactor2, BucketCount15),
		},
		[]string{"verb"},
	)

	m.collectors = []prometheus.Collector{
		m.operationsTotal,
		m.durationSeconds,
		m.errorsTotal,
		m.queriesTotal,
		m.queryDuration,
	}
}

// Describe implements the Collector interface
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// ObserveQuery records one SQL statement. It matches the signature of
// logger.QueryObserver so it can be attached to the GORM logger.
func (m *DatastoreMetrics) ObserveQuery(sql string, seconds float64, failed bool) {
	verb := sqlVerb(sql)
	status := StatusOK
	if failed {
		status = StatusError
	}
	m.queriesTotal.WithLabelValues(verb, status).Inc()
	m.queryDuration.WithLabelValues(verb).Observe(seconds)
}

// sqlVerb returns the lowercased first keyword of a statement.
func sqlVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	switch verb := strings.ToLower(fields[0]); verb {
	case "select", "insert", "update", "delete", "create", "alter", "drop", "pragma", "begin", "commit", "rollback", "savepoint", "release":
		return verb
	default:
		return "other"
	}
}

// RecordOperation implements the Recorder interface.
func (m *DatastoreMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements the Recorder interface.
func (m *DatastoreMetrics) RecordDuration(operation string, seconds float64) {
	m.durationSeconds.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements the Recorder interface.
func (m *DatastoreMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}
