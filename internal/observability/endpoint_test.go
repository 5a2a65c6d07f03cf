package observability

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classroll/rollcall/internal/conf"
	"github.com/classroll/rollcall/internal/observability/metrics"
	"github.com/classroll/rollcall/internal/testutil"
)

func newTestEndpoint(t *testing.T, debug bool) (*Endpoint, *Metrics) {
	t.Helper()

	m, err := NewMetrics()
	require.NoError(t, err)

	settings := &conf.Settings{Debug: debug}
	settings.Telemetry.Enabled = true
	settings.Telemetry.Listen = "127.0.0.1:0"

	e, err := NewEndpoint(settings, m)
	require.NoError(t, err)
	return e, m
}

func TestNewEndpointRequiresTelemetry(t *testing.T) {
	t.Parallel()

	_, err := NewEndpoint(&conf.Settings{}, nil)
	require.Error(t, err)
}

func TestMetricsHandlerExposesRollcallSeries(t *testing.T) {
	t.Parallel()

	e, m := newTestEndpoint(t, false)
	m.Capture.RecordOperation(metrics.OpCaptureRound, metrics.StatusOK)
	m.Attendance.RecordTransition("no_session", "session_open")

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `rollcall_capture_rounds_total{status="ok"} 1`)
	assert.Contains(t, body, "rollcall_sessions_open 1")
	assert.Contains(t, body, "go_goroutines")

	rec = httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code, "pprof is only mounted in debug mode")
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	e, _ := newTestEndpoint(t, true)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- e.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/metrics"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx // test
		if err != nil {
			return false
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, testutil.WaitFor[error](t, done, testutil.DefaultTestTimeout, "endpoint did not stop"))
}
