// Package telemetry provides opt-in, privacy-filtered error reporting to Sentry.
package telemetry

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/time/rate"

	"github.com/classroll/rollcall/internal/conf"
	"github.com/classroll/rollcall/internal/errors"
	"github.com/classroll/rollcall/internal/logger"
)

// DefaultFlushTimeout bounds how long Flush waits for buffered events at shutdown.
const DefaultFlushTimeout = 2 * time.Second

// captureBurst and captureInterval bound how many plain errors CaptureError forwards.
const (
	captureBurst    = 10
	captureInterval = 6 * time.Second
)

var (
	sentryInitialized atomic.Bool
	captureLimiter    atomic.Pointer[rate.Limiter]
)

// PlatformInfo holds privacy-safe platform information attached to every event.
type PlatformInfo struct {
	OS           string
	Architecture string
	NumCPU       int
	GoVersion    string
	MemoryGB     int
}

func collectPlatformInfo() PlatformInfo {
	info := PlatformInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		NumCPU:       runtime.NumCPU(),
		GoVersion:    runtime.Version(),
	}
	// Whole gigabytes only.
	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryGB = int((vm.Total + (1 << 29)) >> 30) //nolint:gosec // G115: bounded by physical memory
	}
	return info
}

// InitSentry initializes Sentry when it is enabled in settings and routes
// enhanced errors to it. Reporting is opt-in; a disabled setting is not an error.
func InitSentry(settings *conf.Settings, version string) error {
	return initSentry(settings, version, nil)
}

func initSentry(settings *conf.Settings, version string, transport sentry.Transport) error {
	log := GetLogger()

	if !settings.Sentry.Enabled {
		log.Info("sentry telemetry is disabled (opt-in required)")
		return nil
	}
	if settings.Sentry.DSN == "" {
		return errors.Newf("sentry is enabled but no DSN is configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Context("setting", "sentry.dsn").
			Build()
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		SampleRate:       1.0,
		Debug:            settings.Sentry.Debug,
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",
		Release:          fmt.Sprintf("rollcall@%s", version),
		BeforeSend:       beforeSend,
		Transport:        transport,
	})
	if err != nil {
		return errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	configureScope(settings)
	captureLimiter.Store(rate.NewLimiter(rate.Every(captureInterval), captureBurst))
	sentryInitialized.Store(true)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	log.Info("sentry telemetry initialized",
		logger.String("release", version),
		logger.String("instance", settings.Main.Name))
	return nil
}

func configureScope(settings *conf.Settings) {
	info := collectPlatformInfo()
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", info.OS)
		scope.SetTag("arch", info.Architecture)
		scope.SetTag("go_version", info.GoVersion)
		scope.SetTag("instance", settings.Main.Name)
		scope.SetContext("platform", map[string]any{
			"num_cpu":   info.NumCPU,
			"memory_gb": info.MemoryGB,
		})
	})
}

func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	return applyPrivacyFilters(event)
}

// applyPrivacyFilters strips host, user and runtime details and scrubs the
// message of e-mail addresses and person ids.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Message = errors.ScrubMessage(event.Message)

	for i := range event.Exception {
		event.Exception[i].Value = errors.ScrubMessage(event.Exception[i].Value)
	}

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}

// CaptureError reports a plain error. Enhanced errors are reported when built
// and are skipped here.
func CaptureError(err error, component string) {
	if err == nil || !sentryInitialized.Load() {
		return
	}

	var ee *errors.EnhancedError
	if errors.As(err, &ee) && ee.IsReported() {
		return
	}
	if l := captureLimiter.Load(); l != nil && !l.Allow() {
		GetLogger().Debug("error report dropped by rate limit", logger.String("component", component))
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetTag("error_type", fmt.Sprintf("%T", err))
		scope.SetLevel(sentry.LevelError)

		event := sentry.NewEvent()
		event.Level = sentry.LevelError
		event.Message = errors.ScrubMessage(err.Error())
		sentry.CaptureEvent(event)
	})
}

// Flush waits up to timeout for buffered events to be delivered.
func Flush(timeout time.Duration) {
	if !sentryInitialized.Load() {
		return
	}
	if !sentry.Flush(timeout) {
		GetLogger().Warn("sentry flush timed out", logger.Duration("timeout", timeout))
	}
}

// Shutdown detaches the error reporter and flushes pending events.
func Shutdown(timeout time.Duration) {
	errors.SetTelemetryReporter(nil)
	Flush(timeout)
	sentryInitialized.Store(false)
}
