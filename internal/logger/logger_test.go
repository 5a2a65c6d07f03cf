package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleNesting(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelDebug, time.UTC)

	log.Module("datastore").Module("sqlite").Info("opened", String("path", ":memory:"))

	out := buf.String()
	assert.Contains(t, out, "module=datastore.sqlite")
	assert.Contains(t, out, "msg=opened")
	assert.Contains(t, out, "path=:memory:")
	assert.NotContains(t, out, "time=", "console output drops timestamps")
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelWarn, time.UTC).Module("capture")

	log.Debug("hidden debug")
	log.Info("hidden info")
	log.Log(LogLevelInfo, "hidden explicit")
	log.Warn("shown warn")
	log.Error("shown error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown warn")
	assert.Contains(t, out, "shown error")
}

func TestTraceLevelName(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewSlogLogger(&buf, LogLevelTrace, time.UTC).Trace("deep")

	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestWithContextAddsTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, time.UTC).Module("session")

	ctx := WithTraceID(t.Context(), "6f1c2a")
	log.WithContext(ctx).Info("session opened")
	log.WithContext(t.Context()).Info("no trace")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "trace_id=6f1c2a")
	assert.NotContains(t, lines[1], "trace_id")
}

func TestWithDoesNotLeakFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := NewSlogLogger(&buf, LogLevelInfo, time.UTC).Module("match")
	scoped := base.With(String("role", "student"))

	scoped.Info("scoped")
	base.Info("base")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "role=student")
	assert.NotContains(t, lines[1], "role=student")
}

func TestFieldRendering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewSlogLogger(&buf, LogLevelInfo, time.UTC).Info("fields",
		Float64("distance", 0.123456),
		Duration("elapsed", 1234567*time.Microsecond),
		Error(errors.New("boom")),
		Error(nil),
		Bool("ok", true))

	out := buf.String()
	assert.Contains(t, out, "distance=0.123")
	assert.Contains(t, out, "elapsed=1.235s")
	assert.Contains(t, out, "error=boom")
	assert.Contains(t, out, "ok=true")
}

func TestCentralLoggerFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "rollcall.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"mqtt": "error"},
	})
	require.NoError(t, err)

	cl.Module("session").Info("marked present", String("enrollment_id", "1001"))
	cl.Module("mqtt").Info("suppressed by module level")
	require.NoError(t, cl.Close())
	require.NoError(t, cl.Close(), "close is idempotent")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "session", rec["module"])
	assert.Equal(t, "marked present", rec["msg"])
	assert.Equal(t, "1001", rec["enrollment_id"])
}

func TestCentralLoggerRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(nil)
	require.Error(t, err)

	_, err = NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}

func TestRedactEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"jane.doe@school.edu", "j***@school.edu"},
		{"a@b.c", "a***@b.c"},
		{"not-an-email", "***"},
		{"@nolocal.org", "***"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactEmail(tt.in), tt.in)
	}
}

func TestGormAdapterReportsQueries(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	var seen []string
	var failures int

	adapter := NewGormLoggerAdapter(NewSlogLogger(&buf, LogLevelTrace, time.UTC), 50*time.Millisecond).
		WithObserver(func(sql string, _ time.Duration, err error) {
			seen = append(seen, sql)
			if err != nil {
				failures++
			}
		})

	ctx := t.Context()
	adapter.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	adapter.Trace(ctx, time.Now().Add(-time.Second), func() (string, int64) { return "SELECT slow", 0 }, nil)
	adapter.Trace(ctx, time.Now(), func() (string, int64) { return "INSERT x", 0 }, errors.New("constraint"))

	assert.Equal(t, []string{"SELECT 1", "SELECT slow", "INSERT x"}, seen)
	assert.Equal(t, 1, failures)

	out := buf.String()
	assert.Contains(t, out, `msg="sql query"`)
	assert.Contains(t, out, `msg="slow query"`)
	assert.Contains(t, out, `msg="query error"`)
}
