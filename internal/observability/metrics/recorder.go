// Package metrics provides custom Prometheus metrics for rollcall.
package metrics

// Recorder defines a minimal interface for recording metrics.
// Components depend on it rather than on concrete collectors so tests can
// substitute a TestRecorder.
type Recorder interface {
	// RecordOperation records an operation with its outcome,
	// e.g. ("capture_round", "ok") or ("insert_attendance", "error").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its type, usually the
	// error category.
	RecordError(operation, errorType string)
}

// NoOpRecorder is a Recorder that discards everything.
type NoOpRecorder struct{}

// NewNoOpRecorder creates a new no-op recorder instance.
func NewNoOpRecorder() *NoOpRecorder {
	return &NoOpRecorder{}
}

func (n *NoOpRecorder) RecordOperation(operation, status string) {}

func (n *NoOpRecorder) RecordDuration(operation string, seconds float64) {}

func (n *NoOpRecorder) RecordError(operation, errorType string) {}

// OrNoOp returns r, or a NoOpRecorder when r is nil.
func OrNoOp(r Recorder) Recorder {
	if r == nil {
		return NewNoOpRecorder()
	}
	return r
}
