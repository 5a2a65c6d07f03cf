// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation names passed to Recorder.
const (
	// OpCaptureRound is one capture and encode round.
	OpCaptureRound = "capture_round"
	// OpCapture is a whole Capture call, rounds plus aggregation.
	OpCapture = "capture"
	// OpExtract is one feature extraction.
	OpExtract = "extract"
	// OpMatch is one FindMatch call.
	OpMatch = "match"
	// OpAuthenticate is one teacher authentication attempt.
	OpAuthenticate = "authenticate"
	// OpTransition is an FSM state change.
	OpTransition = "transition"
	// OpMark is an attendance mark decided by the FSM.
	OpMark = "mark"

	// Gateway operations.
	OpListCandidates     = "list_candidates"
	OpCreateSession      = "create_session"
	OpCloseSession       = "close_session"
	OpInsertAttendance   = "insert_attendance"
	OpListOfferedClasses = "list_offered_classes"
	OpRegister           = "register"
	OpCatalog            = "catalog"
	OpQuery              = "query"
)

// Status label values.
const (
	StatusOK        = "ok"
	StatusEmpty     = "empty"
	StatusError     = "error"
	StatusMatched   = "matched"
	StatusNoMatch   = "no_match"
	StatusDuplicate = "duplicate"
)

// Histogram bucket configuration constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~16s range).
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart64B is the starting bucket for 64 byte histograms.
	BucketStart64B = 64.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2

	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15

	// DistanceBucketWidth and DistanceBucketCount cover match distances 0.0 to 1.5.
	DistanceBucketWidth = 0.1
	DistanceBucketCount = 16
)

// ShutdownTimeout is the timeout for graceful shutdown of the metrics endpoint.
const ShutdownTimeout = 5 * time.Second
