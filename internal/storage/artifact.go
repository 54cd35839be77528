// Package storage persists trained model artifacts.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"kitchenplan/internal/estimator"
	"kitchenplan/internal/features"
)

// ErrArtifactNotFound is returned when no artifact exists under a name
var ErrArtifactNotFound = errors.New("model artifact not found")

// Artifact is a trained estimator together with the feature columns it was
// trained on. It is immutable once built.
type Artifact struct {
	ID             string
	FeatureColumns []string
	Estimator      estimator.Estimator
	Metrics        estimator.Metrics
	TrainedAt      time.Time
	ModelType      string
}

// Metadata is the JSON document stored next to the estimator blob
type Metadata struct {
	ID             string            `json:"id"`
	FeatureColumns []string          `json:"feature_columns"`
	Metrics        estimator.Metrics `json:"metrics"`
	Timestamp      time.Time         `json:"timestamp"`
	ModelType      string            `json:"model_type"`
}

// Store saves and loads artifacts by model name
type Store interface {
	Save(ctx context.Context, name string, artifact *Artifact) error
	Load(ctx context.Context, name string) (*Artifact, error)
}

// NewArtifact wraps a fitted estimator
func NewArtifact(est estimator.Estimator, columns []string, metrics estimator.Metrics) *Artifact {
	return &Artifact{
		ID:             uuid.NewString(),
		FeatureColumns: append([]string(nil), columns...),
		Estimator:      est,
		Metrics:        metrics,
		TrainedAt:      time.Now().UTC().Truncate(time.Microsecond),
		ModelType:      est.Type(),
	}
}

// Metadata returns the artifact's metadata document
func (a *Artifact) Metadata() Metadata {
	return Metadata{
		ID:             a.ID,
		FeatureColumns: a.FeatureColumns,
		Metrics:        a.Metrics,
		Timestamp:      a.TrainedAt,
		ModelType:      a.ModelType,
	}
}

func encode(a *Artifact) (Metadata, []byte, error) {
	if a == nil || a.Estimator == nil {
		return Metadata{}, nil, errors.New("artifact has no estimator")
	}
	blob, err := a.Estimator.MarshalBinary()
	if err != nil {
		return Metadata{}, nil, fmt.Errorf("failed to encode estimator: %w", err)
	}
	return a.Metadata(), blob, nil
}

func decode(meta Metadata, blob []byte) (*Artifact, error) {
	est, err := estimator.Decode(meta.ModelType, blob)
	if err != nil {
		return nil, err
	}
	if est.NumFeatures() != len(meta.FeatureColumns) {
		return nil, fmt.Errorf("%w: estimator expects %d features, metadata lists %d",
			features.ErrConfigMismatch, est.NumFeatures(), len(meta.FeatureColumns))
	}
	return &Artifact{
		ID:             meta.ID,
		FeatureColumns: meta.FeatureColumns,
		Estimator:      est,
		Metrics:        meta.Metrics,
		TrainedAt:      meta.Timestamp,
		ModelType:      meta.ModelType,
	}, nil
}

func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid model name %q", name)
	}
	return nil
}

func blobName(name string) string {
	return name + ".model"
}

func metadataName(name string) string {
	return name + "_metadata.json"
}
