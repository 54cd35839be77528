package forecast

import (
	"errors"

	"kitchenplan/internal/features"
)

var (
	// ErrData is returned when request data cannot be used
	ErrData = errors.New("invalid data")
	// ErrModelNotLoaded is returned when a prediction needs a model and none is loaded
	ErrModelNotLoaded = errors.New("model not loaded")
	// ErrConfigMismatch is returned when features do not match the loaded model
	ErrConfigMismatch = features.ErrConfigMismatch
)

// Fallback records a dish whose prediction was replaced by its historical mean
type Fallback struct {
	Dish   string  `json:"dish"`
	Reason string  `json:"reason"`
	Value  float64 `json:"value"`
}

// fallback reason kinds used as metric labels
const (
	reasonConfigMismatch = "config_mismatch"
	reasonEstimator      = "estimator_error"
)

func reasonKind(err error) string {
	if errors.Is(err, ErrConfigMismatch) {
		return reasonConfigMismatch
	}
	return reasonEstimator
}
