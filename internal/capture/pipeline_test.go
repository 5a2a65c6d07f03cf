package capture

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classroll/rollcall/internal/biometric"
	"github.com/classroll/rollcall/internal/errors"
	"github.com/classroll/rollcall/internal/observability/metrics"
)

// activity detects overlap between frame reads and extraction.
type activity struct {
	active  atomic.Int32
	overlap atomic.Bool
}

func (a *activity) enter() {
	if a.active.Add(1) > 1 {
		a.overlap.Store(true)
	}
}

func (a *activity) leave() { a.active.Add(-1) }

type fakeSource struct {
	act      *activity
	reads    atomic.Int32
	failAt   int // 1-based read number that fails, 0 never
	readHook func(n int)
	closed   atomic.Bool
}

func (s *fakeSource) ReadFrame(ctx context.Context) (image.Image, error) {
	s.act.enter()
	defer s.act.leave()

	n := int(s.reads.Add(1))
	if s.readHook != nil {
		s.readHook(n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.failAt > 0 && n == s.failAt {
		return nil, errors.NewStd("device unplugged")
	}
	return image.NewGray(image.Rect(0, 0, 2, 2)), nil
}

func (s *fakeSource) Close() error {
	s.closed.Store(true)
	return nil
}

type scriptStep struct {
	vec biometric.FeatureVector
	ok  bool
	err error
}

type fakeExtractor struct {
	act    *activity
	script []scriptStep
	calls  atomic.Int32
	hook   func(call int)
}

func (e *fakeExtractor) Extract(_ context.Context, _ image.Image) (biometric.FeatureVector, bool, error) {
	e.act.enter()
	defer e.act.leave()

	n := int(e.calls.Add(1))
	if e.hook != nil {
		e.hook(n)
	}
	step := e.script[(n-1)%len(e.script)]
	return step.vec, step.ok, step.err
}

type recordingSink struct {
	mu    sync.Mutex
	shown []string
}

func (r *recordingSink) ShowInstruction(instruction string, _, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, instruction)
}

func constant(n int, value float64) biometric.FeatureVector {
	v := make(biometric.FeatureVector, n)
	for i := range v {
		v[i] = value
	}
	return v
}

func staticOpener(src FrameSource) Opener {
	return OpenerFunc(func(context.Context) (FrameSource, error) { return src, nil })
}

func TestCaptureAveragesFoundVectors(t *testing.T) {
	t.Parallel()

	act := &activity{}
	src := &fakeSource{act: act}
	ext := &fakeExtractor{act: act, script: []scriptStep{
		{vec: constant(128, 1), ok: true},
		{vec: constant(128, 2), ok: true},
		{ok: false},
		{vec: constant(128, 3), ok: true},
		{vec: constant(128, 4), ok: true},
	}}
	rec := metrics.NewTestRecorder()
	var samples int

	p := NewPipeline(staticOpener(src), ext,
		WithRecorder(rec),
		WithSampleObserver(func(n int) { samples = n }))

	got, err := p.Capture(t.Context(), 5, nil)
	require.NoError(t, err)
	require.Len(t, got, 128)
	for i, v := range got {
		assert.InDelta(t, 2.5, v, 1e-12, "element %d", i)
	}

	assert.Equal(t, int32(5), src.reads.Load())
	assert.Equal(t, int32(5), ext.calls.Load())
	assert.False(t, act.overlap.Load(), "capture and encode overlapped")
	assert.True(t, src.closed.Load())
	assert.Equal(t, 4, samples)

	assert.Equal(t, 4, rec.GetOperationCount(metrics.OpCaptureRound, metrics.StatusOK))
	assert.Equal(t, 1, rec.GetOperationCount(metrics.OpCaptureRound, metrics.StatusEmpty))
	assert.Equal(t, 1, rec.GetOperationCount(metrics.OpCapture, metrics.StatusOK))
	assert.Len(t, rec.GetDurations(metrics.OpCapture), 1)
}

func TestCaptureCyclesInstructions(t *testing.T) {
	t.Parallel()

	act := &activity{}
	sink := &recordingSink{}
	p := NewPipeline(
		staticOpener(&fakeSource{act: act}),
		&fakeExtractor{act: act, script: []scriptStep{{vec: constant(4, 1), ok: true}}},
		WithInstructionSink(sink))

	instructions := []string{"Center", "Tilt Left", "Tilt Right", "Tilt Up", "Tilt Down"}
	_, err := p.Capture(t.Context(), 7, instructions)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Center", "Tilt Left", "Tilt Right", "Tilt Up", "Tilt Down", "Center", "Tilt Left",
	}, sink.shown)
}

func TestCaptureSingleShowsNoInstruction(t *testing.T) {
	t.Parallel()

	act := &activity{}
	sink := &recordingSink{}
	p := NewPipeline(
		staticOpener(&fakeSource{act: act}),
		&fakeExtractor{act: act, script: []scriptStep{{vec: biometric.FeatureVector{0.1, 0.2}, ok: true}}},
		WithInstructionSink(sink))

	got, err := p.CaptureSingle(t.Context())
	require.NoError(t, err)
	assert.Equal(t, biometric.FeatureVector{0.1, 0.2}, got)
	assert.Empty(t, sink.shown)
}

func TestCaptureNoFaceInAnyFrame(t *testing.T) {
	t.Parallel()

	act := &activity{}
	src := &fakeSource{act: act}
	rec := metrics.NewTestRecorder()
	p := NewPipeline(staticOpener(src),
		&fakeExtractor{act: act, script: []scriptStep{{ok: false}}},
		WithRecorder(rec))

	_, err := p.Capture(t.Context(), 3, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, errors.ErrNoBiometricCaptured)
	assert.True(t, src.closed.Load())
	assert.Equal(t, 3, rec.GetOperationCount(metrics.OpCaptureRound, metrics.StatusEmpty))
	assert.Equal(t, 1, rec.GetErrorCount(metrics.OpCapture, string(errors.CategoryBiometricCapture)))
}

func TestCaptureReadFailureKeepsCollectedVectors(t *testing.T) {
	t.Parallel()

	act := &activity{}
	src := &fakeSource{act: act, failAt: 3}
	ext := &fakeExtractor{act: act, script: []scriptStep{
		{vec: constant(8, 1), ok: true},
		{vec: constant(8, 3), ok: true},
	}}
	rec := metrics.NewTestRecorder()
	var samples int
	p := NewPipeline(staticOpener(src), ext,
		WithRecorder(rec),
		WithSampleObserver(func(n int) { samples = n }))

	got, err := p.Capture(t.Context(), 5, nil)
	require.NoError(t, err)
	assert.Equal(t, constant(8, 2), got)
	assert.Equal(t, int32(3), src.reads.Load())
	assert.Equal(t, int32(2), ext.calls.Load())
	assert.Equal(t, 2, samples)
	assert.True(t, src.closed.Load())
	assert.Equal(t, 1, rec.GetErrorCount(metrics.OpCaptureRound, string(errors.CategoryCaptureDevice)))
}

func TestCaptureReadFailureBeforeAnyVector(t *testing.T) {
	t.Parallel()

	act := &activity{}
	src := &fakeSource{act: act, failAt: 1}
	ext := &fakeExtractor{act: act, script: []scriptStep{{vec: constant(8, 1), ok: true}}}
	p := NewPipeline(staticOpener(src), ext)

	_, err := p.Capture(t.Context(), 5, nil)
	require.ErrorIs(t, err, errors.ErrNoBiometricCaptured)
	assert.NotErrorIs(t, err, errors.ErrCaptureDeviceUnavailable)
	assert.Equal(t, int32(1), src.reads.Load())
	assert.Zero(t, ext.calls.Load())
	assert.True(t, src.closed.Load())
}

func TestCaptureOpenFailure(t *testing.T) {
	t.Parallel()

	opener := OpenerFunc(func(context.Context) (FrameSource, error) {
		return nil, errors.NewStd("no such device")
	})
	p := NewPipeline(opener, &fakeExtractor{act: &activity{}, script: []scriptStep{{ok: false}}})

	_, err := p.Capture(t.Context(), 1, nil)
	require.ErrorIs(t, err, errors.ErrCaptureDeviceUnavailable)
	assert.Contains(t, err.Error(), "no such device")
}

func TestCaptureExtractorErrorAborts(t *testing.T) {
	t.Parallel()

	modelErr := errors.NewStd("interpreter invoke failed")
	act := &activity{}
	src := &fakeSource{act: act}
	ext := &fakeExtractor{act: act, script: []scriptStep{
		{vec: constant(4, 1), ok: true},
		{err: modelErr},
	}}
	p := NewPipeline(staticOpener(src), ext)

	_, err := p.Capture(t.Context(), 5, nil)
	require.ErrorIs(t, err, modelErr)
	assert.Equal(t, int32(2), ext.calls.Load())
	assert.True(t, src.closed.Load())
}

func TestCaptureCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	act := &activity{}
	src := &fakeSource{act: act}
	ext := &fakeExtractor{act: act, script: []scriptStep{{vec: constant(4, 1), ok: true}}}
	ext.hook = func(call int) {
		if call == 2 {
			cancel()
		}
	}
	p := NewPipeline(staticOpener(src), ext)

	got, err := p.Capture(ctx, 50, nil)
	require.Error(t, err)
	assert.Nil(t, got)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
	assert.Less(t, ext.calls.Load(), int32(50))
	assert.True(t, src.closed.Load())
}

func TestCaptureRejectsZeroTarget(t *testing.T) {
	t.Parallel()

	opened := false
	opener := OpenerFunc(func(context.Context) (FrameSource, error) {
		opened = true
		return &fakeSource{act: &activity{}}, nil
	})
	p := NewPipeline(opener, &fakeExtractor{act: &activity{}, script: []scriptStep{{ok: false}}})

	_, err := p.Capture(t.Context(), 0, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.False(t, opened)
}

func TestCaptureCallsAreSerialized(t *testing.T) {
	t.Parallel()

	var open, maxOpen atomic.Int32
	opener := OpenerFunc(func(context.Context) (FrameSource, error) {
		n := open.Add(1)
		for {
			cur := maxOpen.Load()
			if n <= cur || maxOpen.CompareAndSwap(cur, n) {
				break
			}
		}
		return &closeCounting{
			fakeSource: &fakeSource{act: &activity{}, readHook: func(int) { time.Sleep(2 * time.Millisecond) }},
			open:       &open,
		}, nil
	})

	p := NewPipeline(opener, &fakeExtractor{act: &activity{}, script: []scriptStep{{vec: constant(2, 1), ok: true}}})

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			_, err := p.Capture(t.Context(), 3, nil)
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxOpen.Load())
	assert.Equal(t, int32(0), open.Load())
}

type closeCounting struct {
	*fakeSource
	open *atomic.Int32
}

func (c *closeCounting) Close() error {
	c.open.Add(-1)
	return c.fakeSource.Close()
}
