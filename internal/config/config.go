// Package config loads service configuration from a YAML file, a .env file
// and KITCHENPLAN_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"kitchenplan/internal/database"
	"kitchenplan/internal/estimator"
	"kitchenplan/internal/forecast"
	"kitchenplan/internal/logging"
	"kitchenplan/internal/narrator"
	"kitchenplan/internal/publish"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "KITCHENPLAN"

// Storage backends
const (
	StorageFile = "file"
	StorageDB   = "db"
	StorageS3   = "s3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Log       logging.Config   `mapstructure:"log"`
	Model     forecast.Config  `mapstructure:"model"`
	Estimator estimator.Params `mapstructure:"estimator"`
	Storage   StorageConfig    `mapstructure:"storage"`
	Database  database.Config  `mapstructure:"database"`
	Kafka     publish.Config   `mapstructure:"kafka"`
	Narrator  narrator.Config  `mapstructure:"narrator"`
}

// ServerConfig configures the HTTP listeners
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	MetricsPort     int           `mapstructure:"metrics_port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects where model artifacts live
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
	Region  string `mapstructure:"region"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.development", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", true)

	v.SetDefault("model.name", forecast.DefaultModelName)
	v.SetDefault("model.min_training_records", forecast.MinTrainingRecords)

	p := estimator.DefaultParams()
	v.SetDefault("estimator.rounds", p.Rounds)
	v.SetDefault("estimator.max_depth", p.MaxDepth)
	v.SetDefault("estimator.learning_rate", p.LearningRate)
	v.SetDefault("estimator.subsample", p.Subsample)
	v.SetDefault("estimator.colsample", p.ColSample)
	v.SetDefault("estimator.min_child_weight", p.MinChildWeight)
	v.SetDefault("estimator.gamma", p.Gamma)
	v.SetDefault("estimator.lambda", p.Lambda)
	v.SetDefault("estimator.seed", p.Seed)
	v.SetDefault("estimator.early_stopping", p.EarlyStopping)

	v.SetDefault("storage.backend", StorageFile)
	v.SetDefault("storage.dir", "models")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "models")
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("database.driver", database.DriverSQLite)
	v.SetDefault("database.dsn", "kitchenplan.db")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "production-plans")

	v.SetDefault("narrator.enabled", false)
	v.SetDefault("narrator.model", "gpt-4o-mini")
	v.SetDefault("narrator.api_key", "")
}

// Load reads configuration. An empty path searches ./config.yaml and
// ./configs/config.yaml and runs on defaults when neither exists.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // Load .env file if it exists

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	decoderConfigOption := viper.DecoderConfigOption(func(config *mapstructure.DecoderConfig) {
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err := v.Unmarshal(&cfg, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	cfg.Model.Params = cfg.Estimator

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would only fail later at runtime
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageFile, StorageDB:
	case StorageS3:
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("unknown server mode %q", c.Server.Mode)
	}
	if c.Model.MinTrainingRecords < forecast.MinTrainingRecords {
		return fmt.Errorf("model.min_training_records must be at least %d", forecast.MinTrainingRecords)
	}
	if err := c.Estimator.Validate(); err != nil {
		return fmt.Errorf("estimator: %w", err)
	}
	return nil
}
