package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitchenplan/internal/estimator"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 9090, cfg.Server.MetricsPort)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "demand_model", cfg.Model.ModelName)
	assert.Equal(t, 50, cfg.Model.MinTrainingRecords)
	assert.Equal(t, estimator.DefaultParams(), cfg.Estimator)
	assert.Equal(t, cfg.Estimator, cfg.Model.Params)
	assert.Equal(t, StorageFile, cfg.Storage.Backend)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 7000
  mode: debug
storage:
  backend: s3
  bucket: kitchen-models
estimator:
  rounds: 50
  learning_rate: 0.05
`)
	t.Setenv("KITCHENPLAN_SERVER_PORT", "7100")
	t.Setenv("KITCHENPLAN_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("KITCHENPLAN_SERVER_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "kitchen-models", cfg.Storage.Bucket)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 50, cfg.Estimator.Rounds)
	assert.Equal(t, 0.05, cfg.Model.Params.LearningRate)
	assert.Equal(t, 6, cfg.Estimator.MaxDepth)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"backend":   "storage:\n  backend: ftp\n",
		"s3 bucket": "storage:\n  backend: s3\n",
		"mode":      "server:\n  mode: turbo\n",
		"minimum":   "model:\n  min_training_records: 10\n",
		"estimator": "estimator:\n  subsample: 1.5\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
