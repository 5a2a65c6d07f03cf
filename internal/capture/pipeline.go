package capture

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/classroll/rollcall/internal/biometric"
	"github.com/classroll/rollcall/internal/errors"
	"github.com/classroll/rollcall/internal/logger"
	"github.com/classroll/rollcall/internal/observability/metrics"
)

// Pipeline owns the camera for the length of one Capture call.
// Calls are serialized; a second caller blocks until the first returns.
type Pipeline struct {
	opener    Opener
	extractor Extractor
	sink      InstructionSink
	recorder  metrics.Recorder
	onSamples func(n int)
	log       logger.Logger

	mu sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithInstructionSink shows each round's instruction through sink.
func WithInstructionSink(sink InstructionSink) Option {
	return func(p *Pipeline) { p.sink = sink }
}

// WithRecorder records round outcomes and capture durations.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pipeline) { p.recorder = metrics.OrNoOp(r) }
}

// WithSampleObserver is called with the number of vectors behind every
// successful aggregate.
func WithSampleObserver(fn func(n int)) Option {
	return func(p *Pipeline) { p.onSamples = fn }
}

// NewPipeline returns a pipeline reading from opener and encoding with extractor.
func NewPipeline(opener Opener, extractor Extractor, opts ...Option) *Pipeline {
	p := &Pipeline{
		opener:    opener,
		extractor: extractor,
		recorder:  metrics.NewNoOpRecorder(),
		log:       GetLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CaptureSingle captures one frame without instructions, as used for
// teacher authentication.
func (p *Pipeline) CaptureSingle(ctx context.Context) (biometric.FeatureVector, error) {
	return p.Capture(ctx, 1, nil)
}

// Capture runs targetCount capture and encode rounds and returns the mean
// of the vectors found. Round i is shown instructions[i%len(instructions)]
// when instructions is non-empty. Rounds without a face are skipped; if
// every round is empty the result is ErrNoBiometricCaptured. A frame read
// failure stops the rounds early and the vectors collected so far are
// aggregated. Only a camera that cannot be opened fails the call with
// ErrCaptureDeviceUnavailable. Cancelling ctx stops both workers at their
// next wait point and discards the partial result.
func (p *Pipeline) Capture(ctx context.Context, targetCount int, instructions []string) (biometric.FeatureVector, error) {
	if targetCount < 1 {
		return nil, errors.Newf("capture target count must be at least 1, got %d", targetCount).
			Component("capture").
			Category(errors.CategoryValidation).
			Build()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	vectors, err := p.run(ctx, targetCount, instructions)
	p.recorder.RecordDuration(metrics.OpCapture, time.Since(start).Seconds())
	if err != nil {
		p.recordError(err)
		return nil, err
	}

	aggregate, err := biometric.Aggregate(vectors)
	if err != nil {
		p.recordError(err)
		return nil, err
	}

	p.recorder.RecordOperation(metrics.OpCapture, metrics.StatusOK)
	if p.onSamples != nil {
		p.onSamples(len(vectors))
	}
	p.log.Debug("capture complete",
		logger.Int("rounds", targetCount),
		logger.Int("vectors", len(vectors)),
		logger.Duration("elapsed", time.Since(start)))

	return aggregate, nil
}

// run opens the camera, drives the two workers and always closes the camera
// after both have returned.
func (p *Pipeline) run(ctx context.Context, targetCount int, instructions []string) (vectors []biometric.FeatureVector, err error) {
	src, err := p.opener.Open(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrCaptureDeviceUnavailable) {
			return nil, err
		}
		return nil, errors.New(errors.Join(errors.ErrCaptureDeviceUnavailable, err)).
			Component("capture").
			Category(errors.CategoryCaptureDevice).
			Priority(errors.PriorityHigh).
			Context("operation", "open_camera").
			Build()
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			p.log.Warn("closing camera failed", logger.Error(cerr))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	// ready: the slot holds a frame for the encoder.
	// free: the slot is empty and the next frame may be captured.
	ready := make(chan struct{}, 1)
	free := make(chan struct{}, 1)
	free <- struct{}{}

	var slot *Frame

	g.Go(func() error {
		defer close(ready)
		for i := range targetCount {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-free:
			}

			frame := Frame{Seq: i}
			if len(instructions) > 0 {
				frame.Instruction = instructions[i%len(instructions)]
				if p.sink != nil {
					p.sink.ShowInstruction(frame.Instruction, i+1, targetCount)
				}
			}

			img, err := src.ReadFrame(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.recorder.RecordError(metrics.OpCaptureRound, string(errors.CategoryCaptureDevice))
				p.log.Warn("frame read failed, ending capture early",
					logger.Error(err),
					logger.Int("round", i+1),
					logger.Int("target", targetCount))
				return nil
			}
			frame.Image = img

			slot = &frame
			ready <- struct{}{}
		}
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case _, ok := <-ready:
				if !ok {
					return nil
				}
			}

			frame := slot
			slot = nil

			vec, found, err := p.extractor.Extract(gctx, frame.Image)
			switch {
			case err != nil:
				p.recorder.RecordOperation(metrics.OpCaptureRound, metrics.StatusError)
				return err
			case found:
				vectors = append(vectors, vec)
				p.recorder.RecordOperation(metrics.OpCaptureRound, metrics.StatusOK)
			default:
				p.recorder.RecordOperation(metrics.OpCaptureRound, metrics.StatusEmpty)
				p.log.Debug("no face in frame",
					logger.Int("round", frame.Seq+1),
					logger.String("instruction", frame.Instruction))
			}

			free <- struct{}{}
		}
	})

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.New(ctxErr).
				Component("capture").
				Category(errors.CategoryCancellation).
				Context("collected", len(vectors)).
				Build()
		}
		return nil, err
	}

	return vectors, nil
}

func (p *Pipeline) recordError(err error) {
	var ee *errors.EnhancedError
	errorType := string(errors.CategoryGeneric)
	if errors.As(err, &ee) {
		errorType = ee.GetCategory()
	}
	p.recorder.RecordError(metrics.OpCapture, errorType)
}
