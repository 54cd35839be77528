package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitchenplan/internal/database"
	"kitchenplan/internal/estimator"
	"kitchenplan/internal/features"
)

func fittedArtifact(t *testing.T) *Artifact {
	t.Helper()
	params := estimator.DefaultParams()
	params.Rounds = 10
	gb := estimator.NewGradientBoosting(params)
	ds := estimator.Dataset{}
	for i := 0; i < 30; i++ {
		ds.X = append(ds.X, []float64{float64(i), float64(i % 7)})
		ds.Y = append(ds.Y, float64(3*i))
	}
	require.NoError(t, gb.Fit(ds, estimator.Dataset{}))
	return NewArtifact(gb, []string{features.Lag1, features.DayOfWeek}, estimator.Metrics{TestRMSE: 1.5, TrainSize: 24, TestSize: 6, NumFeatures: 2})
}

func assertSameArtifact(t *testing.T, want, got *Artifact) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.FeatureColumns, got.FeatureColumns)
	assert.Equal(t, want.Metrics, got.Metrics)
	assert.Equal(t, estimator.TypeGradientBoosting, got.ModelType)
	assert.True(t, want.TrainedAt.Equal(got.TrainedAt))

	x := []float64{12, 5}
	a, err := want.Estimator.Predict(x)
	require.NoError(t, err)
	b, err := got.Estimator.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")
	store := NewFileStore(dir)
	artifact := fittedArtifact(t)

	require.NoError(t, store.Save(context.Background(), "demand_model", artifact))
	assert.FileExists(t, filepath.Join(dir, "demand_model.model"))
	assert.FileExists(t, filepath.Join(dir, "demand_model_metadata.json"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp files must not be left behind")

	loaded, err := store.Load(context.Background(), "demand_model")
	require.NoError(t, err)
	assertSameArtifact(t, artifact, loaded)
}

func TestFileStoreMissing(t *testing.T) {
	store := NewFileStore(t.TempDir())
	_, err := store.Load(context.Background(), "demand_model")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestFileStoreRejectsMismatchedMetadata(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	artifact := fittedArtifact(t)
	artifact.FeatureColumns = []string{features.Lag1}

	require.NoError(t, store.Save(context.Background(), "demand_model", artifact))
	_, err := store.Load(context.Background(), "demand_model")
	assert.ErrorIs(t, err, features.ErrConfigMismatch)
}

func TestStoresRejectBadNames(t *testing.T) {
	store := NewFileStore(t.TempDir())
	assert.Error(t, store.Save(context.Background(), "../escape", fittedArtifact(t)))
	_, err := store.Load(context.Background(), "")
	assert.Error(t, err)
}

func TestDBStoreLatestWins(t *testing.T) {
	db, err := database.Open(database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	store, err := NewDBStore(db)
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "demand_model")
	assert.ErrorIs(t, err, ErrArtifactNotFound)

	first := fittedArtifact(t)
	second := fittedArtifact(t)
	require.NoError(t, store.Save(context.Background(), "demand_model", first))
	require.NoError(t, store.Save(context.Background(), "demand_model", second))

	loaded, err := store.Load(context.Background(), "demand_model")
	require.NoError(t, err)
	assertSameArtifact(t, second, loaded)
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	client := newFakeS3()
	store := NewS3Store(client, "kitchen-models", "prod")
	artifact := fittedArtifact(t)

	require.NoError(t, store.Save(context.Background(), "demand_model", artifact))
	assert.Contains(t, client.objects, "kitchen-models/prod/demand_model.model")
	assert.Contains(t, client.objects, "kitchen-models/prod/demand_model_metadata.json")

	loaded, err := store.Load(context.Background(), "demand_model")
	require.NoError(t, err)
	assertSameArtifact(t, artifact, loaded)

	_, err = store.Load(context.Background(), "other_model")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}
