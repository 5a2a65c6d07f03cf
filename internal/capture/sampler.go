package capture

import (
	"context"

	"github.com/classroll/rollcall/internal/biometric"
)

// Sampler takes Count frames per sample and returns their aggregate.
// A Count below 2 is a single-shot capture.
type Sampler struct {
	Pipeline *Pipeline
	Count    int
}

// Sample runs one capture call on the pipeline.
func (s Sampler) Sample(ctx context.Context) (biometric.FeatureVector, error) {
	if s.Count < 2 {
		return s.Pipeline.CaptureSingle(ctx)
	}
	return s.Pipeline.Capture(ctx, s.Count, nil)
}
