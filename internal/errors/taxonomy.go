package errors

// Sentinel errors shared by the capture, match, session and datastore
// packages. Wrap them with New(...) to attach context; callers test with Is.
var (
	// ErrCaptureDeviceUnavailable means the camera could not be opened or read.
	ErrCaptureDeviceUnavailable = NewStd("capture device unavailable")

	// ErrNoBiometricCaptured means a capture round produced zero usable vectors.
	ErrNoBiometricCaptured = NewStd("no biometric captured")

	// ErrDimensionMismatch means two vectors of different lengths were compared.
	ErrDimensionMismatch = NewStd("feature vector dimension mismatch")

	// ErrNoMatch means no stored vector was close enough to the query.
	ErrNoMatch = NewStd("no matching identity")

	// ErrPersistenceFailure means a gateway call failed and was rolled back.
	ErrPersistenceFailure = NewStd("persistence failure")

	// ErrAuthorizationDenied means the teacher identity could not be resolved.
	ErrAuthorizationDenied = NewStd("authorization denied")

	// ErrAlreadyMarked means an attendance row for the pair already exists.
	ErrAlreadyMarked = NewStd("attendance already recorded")
)

var sentinelCategories = []struct {
	err      error
	category ErrorCategory
}{
	{ErrCaptureDeviceUnavailable, CategoryCaptureDevice},
	{ErrNoBiometricCaptured, CategoryBiometricCapture},
	{ErrDimensionMismatch, CategoryDimensionMismatch},
	{ErrNoMatch, CategoryNotFound},
	{ErrAlreadyMarked, CategoryConflict},
	{ErrAuthorizationDenied, CategoryAuthorization},
	{ErrPersistenceFailure, CategoryDatabase},
}

// sentinelCategory maps a wrapped sentinel to its category.
func sentinelCategory(err error) (ErrorCategory, bool) {
	for _, sc := range sentinelCategories {
		if Is(err, sc.err) {
			return sc.category, true
		}
	}
	return "", false
}
