package main

import (
	"context"
	"fmt"

	"github.com/jinzhu/gorm"
	"go.uber.org/zap"

	"kitchenplan/internal/config"
	"kitchenplan/internal/database"
	"kitchenplan/internal/estimator"
	"kitchenplan/internal/forecast"
	"kitchenplan/internal/logging"
	"kitchenplan/internal/monitoring"
	"kitchenplan/internal/narrator"
	"kitchenplan/internal/publish"
	"kitchenplan/internal/repository"
	"kitchenplan/internal/storage"
)

// app holds the wired components shared by every command
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *gorm.DB
	metrics   *monitoring.MetricsCollector
	sales     *repository.SalesRepository
	plans     *repository.PlanRepository
	publisher publish.Publisher
	service   *forecast.Service
}

type appOptions struct {
	// withDatabase opens the sales and plan repositories
	withDatabase bool
	progress     estimator.Progress
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		metrics:   monitoring.NewMetricsCollector(),
		publisher: publish.Nop{},
	}
	if err := a.wire(ctx, opts); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, opts appOptions) error {
	if opts.withDatabase || a.cfg.Storage.Backend == config.StorageDB {
		db, err := database.Open(a.cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		a.db = db
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	serviceOpts := []forecast.Option{
		forecast.WithMonitor(monitoring.NewMonitor()),
		forecast.WithMetrics(a.metrics),
	}

	if opts.withDatabase {
		if a.sales, err = repository.NewSalesRepository(a.db); err != nil {
			return err
		}
		if a.plans, err = repository.NewPlanRepository(a.db); err != nil {
			return err
		}
		serviceOpts = append(serviceOpts, forecast.WithArchive(a.plans))
	}

	publisher, err := publish.New(a.cfg.Kafka, a.logger)
	if err != nil {
		return err
	}
	a.publisher = publisher
	serviceOpts = append(serviceOpts, forecast.WithPublisher(publisher))

	if a.cfg.Narrator.Enabled {
		n, err := narrator.NewOpenAI(a.cfg.Narrator)
		if err != nil {
			a.logger.Warn("plan narration disabled", zap.Error(err))
		} else {
			serviceOpts = append(serviceOpts, forecast.WithNarrator(n))
		}
	}

	if opts.progress != nil {
		serviceOpts = append(serviceOpts, forecast.WithTrainingProgress(opts.progress))
	}

	a.service = forecast.NewService(a.cfg.Model, store, a.logger, serviceOpts...)
	return nil
}

func (a *app) openStore(ctx context.Context) (storage.Store, error) {
	switch a.cfg.Storage.Backend {
	case config.StorageDB:
		return storage.NewDBStore(a.db)
	case config.StorageS3:
		return storage.NewS3StoreForRegion(ctx, a.cfg.Storage.Region, a.cfg.Storage.Bucket, a.cfg.Storage.Prefix)
	default:
		return storage.NewFileStore(a.cfg.Storage.Dir), nil
	}
}

func (a *app) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("failed to close publisher", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
