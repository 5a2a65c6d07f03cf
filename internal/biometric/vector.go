// Package biometric defines face feature vectors, their aggregation and
// their stored encoding.
package biometric

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/classroll/rollcall/internal/errors"
)

// FeatureVector is a fixed-length face embedding. Treat it as immutable;
// use Clone before modifying.
type FeatureVector []float64

// Len returns the vector dimension.
func (v FeatureVector) Len() int { return len(v) }

// Finite reports whether every component is a finite number.
func (v FeatureVector) Finite() bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (v FeatureVector) Clone() FeatureVector {
	if v == nil {
		return nil
	}
	out := make(FeatureVector, len(v))
	copy(out, v)
	return out
}

// Aggregate returns the element-wise mean of vectors. It fails with
// ErrNoBiometricCaptured for an empty input and ErrDimensionMismatch
// when the vectors differ in length.
func Aggregate(vectors []FeatureVector) (FeatureVector, error) {
	if len(vectors) == 0 {
		return nil, errors.New(errors.ErrNoBiometricCaptured).
			Component("biometric").
			Context("operation", "aggregate").
			Build()
	}

	dim := len(vectors[0])
	sum := make([]float64, dim)
	for i, v := range vectors {
		// floats.Add panics on length mismatch
		if len(v) != dim {
			return nil, errors.New(errors.ErrDimensionMismatch).
				Component("biometric").
				Context("operation", "aggregate").
				Context("index", i).
				Context("expected", dim).
				Context("actual", len(v)).
				Build()
		}
		floats.Add(sum, v)
	}
	floats.Scale(1/float64(len(vectors)), sum)

	return FeatureVector(sum), nil
}
