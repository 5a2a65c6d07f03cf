package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/classroll/rollcall/internal/conf"
	"github.com/classroll/rollcall/internal/errors"
	"github.com/classroll/rollcall/internal/logger"
)

const (
	stderrBufferSize   = 4096
	maxJPEGSize        = 8 << 20
	defaultReadTimeout = 5 * time.Second
	processExitTimeout = 3 * time.Second
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// FFmpegOpener opens the configured camera by running ffmpeg and reading
// MJPEG frames from its stdout.
type FFmpegOpener struct {
	settings   conf.CameraSettings
	ffmpegPath string
}

// NewFFmpegOpener resolves the ffmpeg binary and returns an opener for the
// configured device. The camera itself is not touched until Open.
func NewFFmpegOpener(settings *conf.CameraSettings) (*FFmpegOpener, error) {
	path, err := conf.ValidateToolPath(settings.FfmpegPath, conf.GetFfmpegBinaryName())
	if err != nil {
		return nil, deviceError(err, "resolve_ffmpeg").Build()
	}
	return &FFmpegOpener{settings: *settings, ffmpegPath: path}, nil
}

// Args returns the ffmpeg command line for the configured device.
func (o *FFmpegOpener) Args() []string {
	return buildArgs(&o.settings)
}

func buildArgs(s *conf.CameraSettings) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-f", s.Format}
	if s.Width > 0 && s.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", s.Width, s.Height))
	}
	// avfoundation refuses to open without an explicit rate
	if s.Format == "avfoundation" {
		args = append(args, "-framerate", "30")
	}
	return append(args,
		"-i", s.Device,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"pipe:1",
	)
}

// Open starts ffmpeg. The process lives until Close or until ctx is done.
func (o *FFmpegOpener) Open(ctx context.Context) (FrameSource, error) {
	cmd := exec.CommandContext(ctx, o.ffmpegPath, o.Args()...)

	timeout := o.settings.ReadTimeout
	if timeout <= 0 {
		timeout = defaultReadTimeout
	}

	s, err := startSource(cmd, o.settings.Device, timeout)
	if err != nil {
		return nil, err
	}
	s.log.Debug("ffmpeg started",
		logger.Int("pid", cmd.Process.Pid),
		logger.String("args", strings.Join(o.Args(), " ")))
	return s, nil
}

// startSource starts cmd and begins splitting its stdout into JPEG frames.
func startSource(cmd *exec.Cmd, device string, readTimeout time.Duration) (*ffmpegSource, error) {
	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = processExitTimeout

	stderr := NewBoundedBuffer(stderrBufferSize)
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, deviceError(err, "stdout_pipe").Build()
	}

	if err := cmd.Start(); err != nil {
		return nil, deviceError(err, "start_ffmpeg").
			Context("device", device).
			Build()
	}

	s := &ffmpegSource{
		cmd:         cmd,
		stderr:      stderr,
		device:      device,
		readTimeout: readTimeout,
		frames:      make(chan []byte, 1),
		done:        make(chan struct{}),
		log:         GetLogger().With(logger.String("device", device)),
	}

	go s.readLoop(bufio.NewScanner(stdout))

	return s, nil
}

type ffmpegSource struct {
	cmd         *exec.Cmd
	stderr      *BoundedBuffer
	device      string
	readTimeout time.Duration
	log         logger.Logger

	// frames holds only the newest encoded frame.
	frames chan []byte
	// done is closed once ffmpeg has exited and waitErr is set.
	done    chan struct{}
	waitErr error

	closeOnce sync.Once
	closeErr  error
}

func (s *ffmpegSource) readLoop(scanner *bufio.Scanner) {
	defer close(s.done)

	scanner.Buffer(make([]byte, 0, 64*1024), maxJPEGSize)
	scanner.Split(scanJPEG)

	for scanner.Scan() {
		frame := bytes.Clone(scanner.Bytes())
		select {
		case s.frames <- frame:
		default:
			// drop the stale frame; this goroutine is the only sender
			select {
			case <-s.frames:
			default:
			}
			s.frames <- frame
		}
	}
	if err := scanner.Err(); err != nil {
		s.log.Warn("reading ffmpeg output failed", logger.Error(err))
	}

	s.waitErr = s.cmd.Wait()
}

// ReadFrame returns the first frame produced after the call began. Frames
// that fail to decode are skipped until the read timeout expires.
func (s *ffmpegSource) ReadFrame(ctx context.Context) (image.Image, error) {
	select {
	case <-s.frames:
	default:
	}

	timer := time.NewTimer(s.readTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case data := <-s.frames:
			img, err := jpeg.Decode(bytes.NewReader(data))
			if err != nil {
				s.log.Warn("discarding undecodable frame",
					logger.Int("bytes", len(data)),
					logger.Error(err))
				continue
			}
			return img, nil

		case <-s.done:
			return nil, s.exitError()

		case <-timer.C:
			return nil, deviceError(errors.NewStd("timed out waiting for frame"), "read_frame").
				Context("device", s.device).
				Context("timeout", s.readTimeout.String()).
				Context("stderr", s.stderr.String()).
				Build()
		}
	}
}

func (s *ffmpegSource) exitError() error {
	cause := s.waitErr
	if cause == nil {
		cause = errors.NewStd("ffmpeg exited")
	}
	return deviceError(cause, "read_frame").
		Context("device", s.device).
		Context("stderr", s.stderr.String()).
		Build()
}

// Close kills the ffmpeg process group and waits for it to be reaped.
func (s *ffmpegSource) Close() error {
	s.closeOnce.Do(func() {
		select {
		case <-s.done:
			return
		default:
		}

		if err := killProcessGroup(s.cmd); err != nil {
			s.log.Warn("killing ffmpeg failed", logger.Error(err))
		}

		select {
		case <-s.done:
		case <-time.After(processExitTimeout):
			s.closeErr = errors.Newf("ffmpeg did not exit within %s", processExitTimeout).
				Component("capture").
				Category(errors.CategorySystem).
				Context("pid", s.cmd.Process.Pid).
				Build()
		}
	})
	return s.closeErr
}

// scanJPEG is a bufio.SplitFunc yielding complete JPEG images delimited by
// the SOI and EOI markers. Bytes before an SOI are discarded, as is a
// truncated image at EOF.
func scanJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		switch {
		case atEOF:
			return len(data), nil, nil
		case len(data) > 1:
			// the last byte may be the first half of an SOI
			return len(data) - 1, nil, nil
		default:
			return 0, nil, nil
		}
	}

	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	stop := start + len(jpegSOI) + end + len(jpegEOI)
	return stop, data[start:stop], nil
}

func deviceError(err error, operation string) *errors.ErrorBuilder {
	return errors.New(errors.Join(errors.ErrCaptureDeviceUnavailable, err)).
		Component("capture").
		Category(errors.CategoryCaptureDevice).
		Priority(errors.PriorityHigh).
		Context("operation", operation)
}

// BoundedBuffer keeps the most recent bytes written to it, up to size.
// It collects ffmpeg's stderr for error reports.
type BoundedBuffer struct {
	buffer bytes.Buffer
	mu     sync.Mutex
	size   int
}

// NewBoundedBuffer creates a BoundedBuffer holding at most size bytes.
func NewBoundedBuffer(size int) *BoundedBuffer {
	return &BoundedBuffer{size: size}
}

// Write implements io.Writer. It always reports the full length as written.
func (b *BoundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if b.buffer.Len()+len(p) > b.size {
		b.buffer.Reset()
		if len(p) > b.size {
			p = p[len(p)-b.size:]
		}
	}
	_, err := b.buffer.Write(p)
	return n, err
}

// String returns the buffered bytes.
func (b *BoundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}
