// Package app starts the services shared by the rollcall commands and runs
// the attendance and registration workflows on top of them.
package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/classroll/rollcall/internal/capture"
	"github.com/classroll/rollcall/internal/conf"
	"github.com/classroll/rollcall/internal/datastore"
	"github.com/classroll/rollcall/internal/errors"
	"github.com/classroll/rollcall/internal/extractor"
	"github.com/classroll/rollcall/internal/logger"
	"github.com/classroll/rollcall/internal/match"
	"github.com/classroll/rollcall/internal/mqtt"
	"github.com/classroll/rollcall/internal/observability"
	"github.com/classroll/rollcall/internal/session"
	"github.com/classroll/rollcall/internal/terminal"
)

// Runtime holds the services every workflow needs. It is created by Start
// and released by Close.
type Runtime struct {
	Settings *conf.Settings
	Metrics  *observability.Metrics
	Store    datastore.Interface
	Pool     *match.Pool
	Console  *terminal.Console

	endpoint  *observability.Endpoint
	mqtt      mqtt.Client
	publisher session.Publisher
	log       logger.Logger
}

// Start opens the database and, when enabled, connects to the MQTT broker.
// An unreachable broker is logged and attendance proceeds without events.
func Start(ctx context.Context, settings *conf.Settings, console *terminal.Console) (*Runtime, error) {
	log := GetLogger()

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, errors.New(err).
			Component("app").
			Category(errors.CategorySystem).
			Context("operation", "init_metrics").
			Build()
	}

	store, err := OpenStore(settings, datastore.WithMetrics(m.Datastore))
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Settings: settings,
		Metrics:  m,
		Store:    store,
		Pool:     match.NewPool(store, settings.Cache.TTL, settings.Cache.Cleanup),
		Console:  console,
		log:      log,
	}

	if settings.Telemetry.Enabled {
		endpoint, err := observability.NewEndpoint(settings, m)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		rt.endpoint = endpoint
	}

	if settings.MQTT.Enabled {
		cfg := mqtt.ConfigFromSettings(settings)
		rt.mqtt = mqtt.NewClient(cfg, m.MQTT)
		if err := rt.mqtt.Connect(ctx); err != nil {
			log.Warn("MQTT broker unavailable, attendance events will not be published",
				logger.String("broker", cfg.Broker),
				logger.Error(err))
		}
		rt.publisher = mqtt.NewPublisher(rt.mqtt, cfg.Topic)
	}

	return rt, nil
}

// OpenStore opens the configured database on its own, for commands that
// need neither the camera nor the broker.
func OpenStore(settings *conf.Settings, opts ...datastore.Option) (datastore.Interface, error) {
	store, err := datastore.New(settings, opts...)
	if err != nil {
		return nil, err
	}
	if err := store.Open(); err != nil {
		return nil, err
	}
	return store, nil
}

// Serve runs fn next to the telemetry endpoint, if one is configured. The
// endpoint stops when fn returns; a failing endpoint cancels fn's context.
func (rt *Runtime) Serve(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if rt.endpoint != nil {
		g.Go(func() error { return rt.endpoint.Run(gctx) })
	}
	g.Go(func() error {
		defer cancel()
		return fn(gctx)
	})
	return g.Wait()
}

// LoadPipeline loads the face models and prepares the camera. The returned
// close function releases the models.
func (rt *Runtime) LoadPipeline() (pipeline *capture.Pipeline, closeFn func() error, err error) {
	ext, err := extractor.Load(&rt.Settings.Biometric, rt.Metrics.Capture)
	if err != nil {
		return nil, nil, err
	}

	opener, err := capture.NewFFmpegOpener(&rt.Settings.Camera)
	if err != nil {
		_ = ext.Close()
		return nil, nil, err
	}

	pipeline = capture.NewPipeline(opener, ext,
		capture.WithInstructionSink(rt.Console),
		capture.WithRecorder(rt.Metrics.Capture),
		capture.WithSampleObserver(rt.Metrics.Capture.ObserveAggregateSamples))
	return pipeline, ext.Close, nil
}

// Close disconnects from the broker and closes the database.
func (rt *Runtime) Close() error {
	if rt.mqtt != nil {
		rt.mqtt.Disconnect()
	}
	if err := rt.Store.Close(); err != nil {
		rt.log.Error("failed to close database", logger.Error(err))
		return err
	}
	return nil
}
