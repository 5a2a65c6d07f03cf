// Package extractor turns camera frames into face feature vectors with
// TensorFlow Lite models.
package extractor

import (
	"context"
	"image"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/classroll/rollcall/internal/biometric"
	"github.com/classroll/rollcall/internal/conf"
	"github.com/classroll/rollcall/internal/errors"
	"github.com/classroll/rollcall/internal/logger"
	"github.com/classroll/rollcall/internal/observability/metrics"
)

// Model runs one inference on a flat float32 input.
type Model interface {
	Run(input []float32) ([]float32, error)
	Close() error
}

// Config configures an Extractor.
type Config struct {
	InputSize         int     // square model input edge
	Dimension         int     // required embedding length
	DetectorThreshold float64 // minimum detector score that counts as a face
	Normalize         bool    // scale embeddings to unit L2 norm
}

// Extractor computes face embeddings. When a detector model is
// set, frames scoring below DetectorThreshold report no face.
type Extractor struct {
	embedder Model
	detector Model
	cfg      Config
	recorder metrics.Recorder
	log      logger.Logger
}

// New returns an extractor. detector may be nil.
func New(embedder, detector Model, cfg Config, recorder metrics.Recorder) *Extractor {
	return &Extractor{
		embedder: embedder,
		detector: detector,
		cfg:      cfg,
		recorder: metrics.OrNoOp(recorder),
		log:      GetLogger(),
	}
}

// Load builds an extractor from the biometric settings, loading the
// embedding model and the optional detector model.
func Load(settings *conf.BiometricSettings, recorder metrics.Recorder) (*Extractor, error) {
	opts := ModelOptions{Threads: settings.Threads, UseXNNPACK: settings.UseXNNPACK}

	embedder, err := LoadTFLiteModel(settings.ModelPath, opts)
	if err != nil {
		return nil, err
	}

	var detector Model
	if settings.DetectorPath != "" {
		d, err := LoadTFLiteModel(settings.DetectorPath, opts)
		if err != nil {
			_ = embedder.Close()
			return nil, err
		}
		detector = d
	}

	return New(embedder, detector, Config{
		InputSize:         settings.InputSize,
		Dimension:         settings.Dimension,
		DetectorThreshold: settings.DetectorThreshold,
		Normalize:         settings.Normalize,
	}, recorder), nil
}

// Extract returns the embedding for img. ok is false when the detector
// finds no face or the embedding is all zeros.
func (e *Extractor) Extract(ctx context.Context, img image.Image) (biometric.FeatureVector, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, false, errors.Newf("empty image").
			Component("extractor").
			Category(errors.CategoryImageDecode).
			Build()
	}

	start := time.Now()
	defer func() {
		e.recorder.RecordDuration(metrics.OpExtract, time.Since(start).Seconds())
	}()

	input := ImageToTensor(img, e.cfg.InputSize)

	if e.detector != nil {
		scores, err := e.detector.Run(input)
		if err != nil {
			e.recorder.RecordError(metrics.OpExtract, "detector")
			return nil, false, err
		}
		if len(scores) == 0 || float64(scores[0]) < e.cfg.DetectorThreshold {
			e.recorder.RecordOperation(metrics.OpExtract, metrics.StatusEmpty)
			if len(scores) > 0 {
				e.log.Trace("detector score below threshold",
					logger.Float64("score", float64(scores[0])),
					logger.Float64("threshold", e.cfg.DetectorThreshold))
			}
			return nil, false, nil
		}
	}

	raw, err := e.embedder.Run(input)
	if err != nil {
		e.recorder.RecordError(metrics.OpExtract, "embedder")
		return nil, false, err
	}
	if e.cfg.Dimension > 0 && len(raw) != e.cfg.Dimension {
		e.recorder.RecordError(metrics.OpExtract, string(errors.CategoryDimensionMismatch))
		return nil, false, errors.New(errors.ErrDimensionMismatch).
			Component("extractor").
			Context("expected", e.cfg.Dimension).
			Context("actual", len(raw)).
			Build()
	}

	vec := make(biometric.FeatureVector, len(raw))
	for i, v := range raw {
		vec[i] = float64(v)
	}

	norm := floats.Norm(vec, 2)
	if norm == 0 || !vec.Finite() {
		e.recorder.RecordOperation(metrics.OpExtract, metrics.StatusEmpty)
		return nil, false, nil
	}
	if e.cfg.Normalize {
		floats.Scale(1/norm, vec)
	}

	e.recorder.RecordOperation(metrics.OpExtract, metrics.StatusOK)
	return vec, true, nil
}

// Close releases both models.
func (e *Extractor) Close() error {
	var errs []error
	if e.detector != nil {
		if err := e.detector.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.embedder.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
