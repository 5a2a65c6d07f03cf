// Package capture drives the camera and the feature extractor through a
// strictly alternating two-worker pipeline and aggregates the vectors of
// one capture call into a single mean vector.
//
// The capture worker reads a frame into a one-frame slot and signals
// "ready"; the encode worker extracts a vector from the slot, clears it and
// signals "free". Both signals are capacity-1 channels, so at most one
// frame is ever in flight and the workers never pipeline.
package capture

import (
	"context"
	"image"

	"github.com/classroll/rollcall/internal/biometric"
)

// Frame is one captured image plus the pose instruction shown while it was taken.
type Frame struct {
	Seq         int
	Instruction string
	Image       image.Image
}

// FrameSource yields frames from an open camera. ReadFrame must return
// promptly once ctx is done.
type FrameSource interface {
	ReadFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// Opener acquires the camera for the duration of one capture call.
type Opener interface {
	Open(ctx context.Context) (FrameSource, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (FrameSource, error)

// Open calls f(ctx).
func (f OpenerFunc) Open(ctx context.Context) (FrameSource, error) { return f(ctx) }

// Extractor turns an image into a feature vector. ok is false with a nil
// error when no face was found.
type Extractor interface {
	Extract(ctx context.Context, img image.Image) (vec biometric.FeatureVector, ok bool, err error)
}

// InstructionSink displays the pose instruction for the next frame.
type InstructionSink interface {
	ShowInstruction(instruction string, round, total int)
}
