// Package estimator defines the demand estimator capability and its
// gradient-boosted tree implementation.
package estimator

import (
	"encoding"
	"errors"
	"fmt"

	"kitchenplan/internal/features"
)

// ErrConfigMismatch is returned when a feature vector does not have the
// shape the estimator was trained on
var ErrConfigMismatch = features.ErrConfigMismatch

// ErrNotFitted is returned by Predict before Fit succeeded
var ErrNotFitted = errors.New("estimator has not been fitted")

// Dataset is a design matrix and its targets
type Dataset struct {
	X [][]float64
	Y []float64
}

// Len returns the number of samples
func (d Dataset) Len() int {
	return len(d.Y)
}

// Validate checks that every sample has width features and a target
func (d Dataset) Validate(width int) error {
	if len(d.X) != len(d.Y) {
		return fmt.Errorf("dataset has %d samples but %d targets", len(d.X), len(d.Y))
	}
	for i, row := range d.X {
		if len(row) != width {
			return fmt.Errorf("%w: sample %d has %d features, want %d", ErrConfigMismatch, i, len(row), width)
		}
	}
	return nil
}

// Estimator is a trainable regression function from a feature vector to a
// demand quantity
type Estimator interface {
	// Fit trains on train; eval, when non-empty, drives early stopping
	Fit(train, eval Dataset) error
	Predict(x []float64) (float64, error)
	NumFeatures() int
	Type() string
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// Decode restores an estimator of the given type from its binary form
func Decode(modelType string, blob []byte) (Estimator, error) {
	var est Estimator
	switch modelType {
	case TypeGradientBoosting:
		est = &GradientBoosting{}
	default:
		return nil, fmt.Errorf("unknown estimator type %q", modelType)
	}
	if err := est.UnmarshalBinary(blob); err != nil {
		return nil, fmt.Errorf("failed to decode %s estimator: %w", modelType, err)
	}
	return est, nil
}
