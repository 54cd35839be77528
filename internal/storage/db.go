package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jinzhu/gorm"

	"kitchenplan/internal/database"
	"kitchenplan/internal/estimator"
)

// ArtifactRecord is the model_artifacts row
type ArtifactRecord struct {
	gorm.Model
	ArtifactID     string `gorm:"column:artifact_id;unique_index"`
	Name           string `gorm:"index"`
	ModelType      string
	FeatureColumns database.StringSlice `gorm:"type:text"`
	Metrics        string               `gorm:"type:text"`
	TrainedAt      time.Time
	Blob           []byte
}

// TableName specifies the table name for ArtifactRecord
func (ArtifactRecord) TableName() string {
	return "model_artifacts"
}

// DBStore keeps every saved artifact; the newest row for a name is loaded
type DBStore struct {
	db *gorm.DB
}

// NewDBStore migrates the artifact table and returns the store
func NewDBStore(db *gorm.DB) (*DBStore, error) {
	if err := database.Migrate(db, &ArtifactRecord{}); err != nil {
		return nil, err
	}
	return &DBStore{db: db}, nil
}

// Save inserts a new artifact row
func (s *DBStore) Save(ctx context.Context, name string, artifact *Artifact) error {
	if err := validateName(name); err != nil {
		return err
	}
	meta, blob, err := encode(artifact)
	if err != nil {
		return err
	}
	metrics, err := json.Marshal(meta.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rec := ArtifactRecord{
		ArtifactID:     meta.ID,
		Name:           name,
		ModelType:      meta.ModelType,
		FeatureColumns: database.StringSlice(meta.FeatureColumns),
		Metrics:        string(metrics),
		TrainedAt:      meta.Timestamp,
		Blob:           blob,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to save artifact: %w", err)
	}
	return nil
}

// Load returns the most recently saved artifact for name
func (s *DBStore) Load(ctx context.Context, name string) (*Artifact, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec ArtifactRecord
	err := s.db.Where("name = ?", name).Order("id desc").First(&rec).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}

	var metrics estimator.Metrics
	if err := json.Unmarshal([]byte(rec.Metrics), &metrics); err != nil {
		return nil, fmt.Errorf("failed to decode metrics: %w", err)
	}
	return decode(Metadata{
		ID:             rec.ArtifactID,
		FeatureColumns: []string(rec.FeatureColumns),
		Metrics:        metrics,
		Timestamp:      rec.TrainedAt,
		ModelType:      rec.ModelType,
	}, rec.Blob)
}
