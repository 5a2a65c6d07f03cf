package errors

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestBuilderCarriesMetadata(t *testing.T) {
	t.Parallel()

	ee := Newf("open %s", "camera").
		Component("capture").
		Category(CategoryCaptureDevice).
		Priority(PriorityHigh).
		Context("device", "/dev/video0").
		Timing("open", 1500*time.Millisecond).
		Build()

	assert.Equal(t, "capture", ee.GetComponent())
	assert.Equal(t, "capture-device", ee.GetCategory())
	assert.Equal(t, PriorityHigh, ee.GetPriority())

	ctx := ee.GetContext()
	assert.Equal(t, "/dev/video0", ctx["device"])
	assert.Equal(t, "open", ctx["operation"])
	assert.Equal(t, int64(1500), ctx["duration_ms"])

	// returned context is a copy
	ctx["device"] = "changed"
	assert.Equal(t, "/dev/video0", ee.GetContext()["device"])
}

func TestInvalidPriorityFallsBackToMedium(t *testing.T) {
	t.Parallel()

	ee := NewStd("x")
	built := New(ee).Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, built.Priority)
}

func TestSentinelCategoryDetection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		sentinel error
		want     ErrorCategory
	}{
		{"device", ErrCaptureDeviceUnavailable, CategoryCaptureDevice},
		{"no biometric", ErrNoBiometricCaptured, CategoryBiometricCapture},
		{"dimension", ErrDimensionMismatch, CategoryDimensionMismatch},
		{"no match", ErrNoMatch, CategoryNotFound},
		{"persistence", ErrPersistenceFailure, CategoryDatabase},
		{"authorization", ErrAuthorizationDenied, CategoryAuthorization},
		{"already marked", ErrAlreadyMarked, CategoryConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ee := New(fmt.Errorf("step failed: %w", tt.sentinel)).Build()
			assert.Equal(t, tt.want, ee.Category)
			assert.ErrorIs(t, ee, tt.sentinel)
			assert.True(t, IsCategory(ee, tt.want))
		})
	}
}

func TestIsMatchesByCategory(t *testing.T) {
	t.Parallel()

	a := New(NewStd("a")).Category(CategoryConflict).Build()
	b := New(NewStd("b")).Category(CategoryConflict).Build()
	c := New(NewStd("c")).Category(CategoryState).Build()

	assert.True(t, Is(a, b))
	assert.False(t, Is(a, c))
	assert.True(t, IsNotFound(New(ErrNoMatch).Build()))
}

type recordingReporter struct {
	mu       sync.Mutex
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestReporterReceivesBuiltErrors(t *testing.T) {
	reporter := &recordingReporter{}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(ErrDimensionMismatch).Component("match").Build()

	require.Len(t, reporter.reported, 1)
	assert.Same(t, ee, reporter.reported[0])
	assert.True(t, ee.IsReported())
	assert.Equal(t, CategoryDimensionMismatch, ee.Category)
}

func TestScrubMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		absent  []string
		present []string
	}{
		{
			name:    "email",
			input:   "duplicate email jane.doe@school.edu for student",
			absent:  []string{"jane.doe@school.edu"},
			present: []string{"[EMAIL_REDACTED]"},
		},
		{
			name:    "enrollment id",
			input:   "insert failed enrollment_id=20231234",
			absent:  []string{"20231234"},
			present: []string{"enrollment_id=[ID_REDACTED]"},
		},
		{
			name:    "mysql dsn",
			input:   "dial rollcall:hunter2@tcp(db:3306)/rollcall",
			absent:  []string{"hunter2"},
			present: []string{"rollcall:[REDACTED]@tcp("},
		},
		{
			name:    "url query",
			input:   "GET https://broker.example.com/x?token=abc failed",
			absent:  []string{"token=abc"},
			present: []string{"https://broker.example.com/x?[REDACTED]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ScrubMessage(tt.input)
			for _, s := range tt.absent {
				assert.NotContains(t, got, s)
			}
			for _, s := range tt.present {
				assert.Contains(t, got, s)
			}
		})
	}
}

func TestGenerateErrorTitle(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("boom")).
		Component("datastore").
		Category(CategoryDatabase).
		Context("operation", "insert_attendance").
		Build()

	assert.Equal(t, "Datastore Database Error Insert Attendance", generateErrorTitle(ee))
}
