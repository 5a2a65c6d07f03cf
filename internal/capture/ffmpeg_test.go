package capture

import (
	"bufio"
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classroll/rollcall/internal/conf"
	"github.com/classroll/rollcall/internal/errors"
)

func encodeTestJPEG(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestScanJPEGSplitsStream(t *testing.T) {
	t.Parallel()

	first := encodeTestJPEG(t, 40)
	second := encodeTestJPEG(t, 200)

	var stream bytes.Buffer
	stream.WriteString("noise before the first frame")
	stream.Write(first)
	stream.Write(second)
	stream.Write(second[:len(second)/2]) // truncated tail

	scanner := bufio.NewScanner(&stream)
	scanner.Buffer(make([]byte, 0, 16), maxJPEGSize)
	scanner.Split(scanJPEG)

	var frames [][]byte
	for scanner.Scan() {
		frames = append(frames, bytes.Clone(scanner.Bytes()))
	}
	require.NoError(t, scanner.Err())
	require.Len(t, frames, 2)
	assert.Equal(t, first, frames[0])
	assert.Equal(t, second, frames[1])

	img, err := jpeg.Decode(bytes.NewReader(frames[1]))
	require.NoError(t, err)
	gray := color.GrayModel.Convert(img.At(4, 4)).(color.Gray)
	assert.InDelta(t, 200, int(gray.Y), 3)
}

func TestScanJPEGWaitsForMoreData(t *testing.T) {
	t.Parallel()

	frame := encodeTestJPEG(t, 10)

	advance, token, err := scanJPEG(frame[:10], false)
	require.NoError(t, err)
	assert.Zero(t, advance)
	assert.Nil(t, token)

	advance, token, err = scanJPEG([]byte{0x00, 0x01, 0xFF}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, advance, "a trailing 0xFF must be kept")
	assert.Nil(t, token)
}

func TestBuildArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings conf.CameraSettings
		contains []string
		absent   []string
	}{
		{
			name:     "v4l2",
			settings: conf.CameraSettings{Device: "/dev/video0", Format: "v4l2", Width: 640, Height: 480},
			contains: []string{"-f v4l2", "-video_size 640x480", "-i /dev/video0", "-f image2pipe", "-vcodec mjpeg", "pipe:1"},
			absent:   []string{"-framerate"},
		},
		{
			name:     "avfoundation",
			settings: conf.CameraSettings{Device: "0", Format: "avfoundation", Width: 1280, Height: 720},
			contains: []string{"-f avfoundation", "-framerate 30", "-i 0"},
		},
		{
			name:     "no resolution",
			settings: conf.CameraSettings{Device: "video=Integrated Camera", Format: "dshow"},
			contains: []string{"-f dshow"},
			absent:   []string{"-video_size"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			args := buildArgs(&tt.settings)
			joined := strings.Join(args, " ")
			for _, want := range tt.contains {
				assert.Contains(t, joined, want)
			}
			for _, unwanted := range tt.absent {
				assert.NotContains(t, joined, unwanted)
			}
			assert.Equal(t, "pipe:1", args[len(args)-1])
			// the device is a single argument even with spaces
			assert.Contains(t, args, tt.settings.Device)
		})
	}
}

func TestBoundedBufferKeepsTail(t *testing.T) {
	t.Parallel()

	b := NewBoundedBuffer(8)
	n, err := b.Write([]byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = b.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, 10, n, "short writes break exec's stderr copier")
	assert.Equal(t, "23456789", b.String())
}

func TestNewFFmpegOpenerMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := NewFFmpegOpener(&conf.CameraSettings{
		FfmpegPath:  "/nonexistent/ffmpeg",
		ReadTimeout: time.Second,
	})
	require.ErrorIs(t, err, errors.ErrCaptureDeviceUnavailable)
}
