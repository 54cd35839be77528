// Package forecast wires the feature pipeline, the estimator and the planner
// into training and planning operations.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kitchenplan/internal/estimator"
	"kitchenplan/internal/features"
	"kitchenplan/internal/models"
	"kitchenplan/internal/monitoring"
	"kitchenplan/internal/planner"
	"kitchenplan/internal/preprocess"
	"kitchenplan/internal/publish"
	"kitchenplan/internal/storage"
)

const (
	// DefaultModelName is the artifact name used when none is configured
	DefaultModelName = "demand_model"
	// MinTrainingRecords is the smallest accepted training batch
	MinTrainingRecords = 50
	// testFraction of prepared rows is held out for evaluation
	testFraction = 0.2
)

// Archiver stores generated plans
type Archiver interface {
	Archive(ctx context.Context, plan models.ProductionPlan, predictionDate time.Time) (string, error)
}

// Narrator describes a plan in plain language
type Narrator interface {
	Narrate(ctx context.Context, plan models.ProductionPlan) (string, error)
}

// Config holds the service settings
type Config struct {
	ModelName          string           `mapstructure:"name"`
	MinTrainingRecords int              `mapstructure:"min_training_records"`
	Params             estimator.Params `mapstructure:"-"`
}

// Option customises a Service
type Option func(*Service)

// WithMonitor records training and plan snapshots on m
func WithMonitor(m *monitoring.Monitor) Option {
	return func(s *Service) { s.monitor = m }
}

// WithMetrics exports prometheus metrics through mc
func WithMetrics(mc *monitoring.MetricsCollector) Option {
	return func(s *Service) { s.metrics = mc }
}

// WithArchive archives every generated plan
func WithArchive(a Archiver) Option {
	return func(s *Service) { s.archive = a }
}

// WithPublisher publishes every generated plan
func WithPublisher(p publish.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithNarrator enables plan narration on request
func WithNarrator(n Narrator) Option {
	return func(s *Service) { s.narrator = n }
}

// WithEstimatorFactory replaces the estimator used by Train
func WithEstimatorFactory(fn func(estimator.Params) estimator.Estimator) Option {
	return func(s *Service) { s.newEstimator = fn }
}

// WithTrainingProgress reports boosting rounds during Train
func WithTrainingProgress(fn estimator.Progress) Option {
	return func(s *Service) { s.progress = fn }
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service trains models and turns sales history into production plans. The
// loaded model is swapped atomically; a request keeps the artifact it
// started with.
type Service struct {
	cfg          Config
	store        storage.Store
	logger       *zap.Logger
	preprocessor *preprocess.Preprocessor
	planner      *planner.Planner
	monitor      *monitoring.Monitor
	metrics      *monitoring.MetricsCollector
	archive      Archiver
	publisher    publish.Publisher
	narrator     Narrator
	newEstimator func(estimator.Params) estimator.Estimator
	progress     estimator.Progress
	now          func() time.Time

	artifact atomic.Pointer[storage.Artifact]
}

// NewService creates a service without a loaded model
func NewService(cfg Config, store storage.Store, logger *zap.Logger, opts ...Option) *Service {
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModelName
	}
	if cfg.MinTrainingRecords < MinTrainingRecords {
		cfg.MinTrainingRecords = MinTrainingRecords
	}
	if cfg.Params == (estimator.Params{}) {
		cfg.Params = estimator.DefaultParams()
	}

	s := &Service{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		preprocessor: preprocess.New(),
		monitor:      monitoring.NewMonitor(),
		metrics:      monitoring.NewMetricsCollector(),
		publisher:    publish.Nop{},
		newEstimator: func(p estimator.Params) estimator.Estimator {
			return estimator.NewGradientBoosting(p)
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.planner = planner.WithClock(s.now)
	return s
}

// Monitor returns the service monitor
func (s *Service) Monitor() *monitoring.Monitor {
	return s.monitor
}

// Artifact returns the loaded model or nil
func (s *Service) Artifact() *storage.Artifact {
	return s.artifact.Load()
}

// ModelLoaded reports whether a model is available for prediction
func (s *Service) ModelLoaded() bool {
	return s.artifact.Load() != nil
}

// Swap replaces the loaded model
func (s *Service) Swap(a *storage.Artifact) {
	s.artifact.Store(a)
	if a != nil {
		s.monitor.RecordMetric("model_name", s.cfg.ModelName)
		s.monitor.RecordTrainingResult(a.ID, a.Metrics)
		s.metrics.RecordTraining(a.Metrics)
	}
}

// Load reads the configured model from the store and swaps it in
func (s *Service) Load(ctx context.Context) error {
	a, err := s.store.Load(ctx, s.cfg.ModelName)
	if err != nil {
		return err
	}
	s.Swap(a)
	s.logger.Info("model loaded",
		zap.String("model", s.cfg.ModelName),
		zap.String("model_id", a.ID),
		zap.Float64("test_rmse", a.Metrics.TestRMSE))
	return nil
}

// Tomorrow returns the start of the day after now
func (s *Service) Tomorrow() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

// Train fits a new model on records, saves it and swaps it in
func (s *Service) Train(ctx context.Context, records []models.SalesRecord) (*storage.Artifact, error) {
	if len(records) < s.cfg.MinTrainingRecords {
		return nil, fmt.Errorf("%w: need at least %d training records, got %d", ErrData, s.cfg.MinTrainingRecords, len(records))
	}

	rows, err := s.preprocessor.PrepareTrainingRows(records)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrData, err)
	}
	rows = features.Engineer(rows)
	columns := features.SelectColumns(rows)
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no feature is available in every row", ErrData)
	}
	x, y, err := features.Matrix(rows, columns)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrData, err)
	}
	if len(y) < 2 {
		return nil, fmt.Errorf("%w: only %d usable rows after feature preparation", ErrData, len(y))
	}

	testSize := int(math.Ceil(float64(len(y)) * testFraction))
	split := len(y) - testSize
	train := estimator.Dataset{X: x[:split], Y: y[:split]}
	test := estimator.Dataset{X: x[split:], Y: y[split:]}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	est := s.newEstimator(s.cfg.Params)
	if p, ok := est.(interface{ OnProgress(estimator.Progress) }); ok && s.progress != nil {
		p.OnProgress(s.progress)
	}

	started := time.Now()
	if err := est.Fit(train, test); err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}

	trainPred, err := estimator.PredictAll(est, train.X)
	if err != nil {
		return nil, fmt.Errorf("training evaluation failed: %w", err)
	}
	testPred, err := estimator.PredictAll(est, test.X)
	if err != nil {
		return nil, fmt.Errorf("test evaluation failed: %w", err)
	}
	metrics := estimator.NewMetrics(
		estimator.Evaluate(train.Y, trainPred),
		estimator.Evaluate(test.Y, testPred),
		train.Len(), test.Len(), len(columns),
	)

	artifact := storage.NewArtifact(est, columns, metrics)
	if err := s.store.Save(ctx, s.cfg.ModelName, artifact); err != nil {
		return nil, fmt.Errorf("failed to save model: %w", err)
	}
	s.Swap(artifact)

	trees := 0
	if gb, ok := est.(interface{ NumTrees() int }); ok {
		trees = gb.NumTrees()
	}
	s.logger.Info("model trained",
		zap.String("model_id", artifact.ID),
		zap.Int("trees", trees),
		zap.Int("records", len(records)),
		zap.Int("train_size", metrics.TrainSize),
		zap.Int("test_size", metrics.TestSize),
		zap.Float64("test_rmse", metrics.TestRMSE),
		zap.Duration("elapsed", time.Since(started)))
	return artifact, nil
}

// PredictDish forecasts demand for one dish on date. A dish without history
// is forecast as 0.
func (s *Service) PredictDish(ctx context.Context, history []models.SalesRecord, dish string, date time.Time) (float64, error) {
	if dish == "" {
		return 0, fmt.Errorf("%w: dish name is required", ErrData)
	}
	a := s.artifact.Load()
	if a == nil {
		return 0, ErrModelNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	started := time.Now()
	defer func() { s.metrics.ObservePrediction("dish", time.Since(started)) }()

	return s.predictWith(a, s.preprocessor.Clean(history), dish, date)
}

func (s *Service) predictWith(a *storage.Artifact, cleaned []models.SalesRecord, dish string, date time.Time) (float64, error) {
	row, ok := s.preprocessor.PrepareInferenceRow(cleaned, dish, date)
	if !ok {
		return 0, nil
	}
	rows := features.Engineer([]features.Row{row})
	vector, _, _, err := features.SelectFeatureVector(rows[0], a.FeatureColumns)
	if err != nil {
		return 0, err
	}
	v, err := a.Estimator.Predict(vector)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("estimator returned %v", v)
	}
	return round2(math.Max(0, v)), nil
}

// PredictAll forecasts every menu dish in menu order. A dish whose
// prediction fails gets its historical mean and is reported as a fallback.
func (s *Service) PredictAll(ctx context.Context, history []models.SalesRecord, menu []models.MenuItem, date time.Time) ([]models.DishForecast, []Fallback, error) {
	dishes := menuDishes(menu)
	forecasts := make([]models.DishForecast, 0, len(dishes))
	fallbacks := []Fallback{}

	if len(history) == 0 {
		for _, dish := range dishes {
			forecasts = append(forecasts, models.DishForecast{Dish: dish})
		}
		return forecasts, fallbacks, nil
	}

	a := s.artifact.Load()
	if a == nil {
		return nil, nil, ErrModelNotLoaded
	}

	started := time.Now()
	defer func() { s.metrics.ObservePrediction("batch", time.Since(started)) }()

	cleaned := s.preprocessor.Clean(history)
	for _, dish := range dishes {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		v, err := s.predictWith(a, cleaned, dish, date)
		if err != nil {
			v = preprocess.HistoricalMean(cleaned, dish)
			fallbacks = append(fallbacks, Fallback{Dish: dish, Reason: err.Error(), Value: v})
			s.metrics.RecordFallback(reasonKind(err))
			s.monitor.IncrementCounter("prediction_fallbacks")
			s.logger.Warn("prediction failed, using historical mean",
				zap.String("dish", dish),
				zap.Float64("fallback", v),
				zap.Error(err))
		}
		forecasts = append(forecasts, models.DishForecast{Dish: dish, Quantity: v})
	}
	return forecasts, fallbacks, nil
}

// PlanRequest is the input of one planning call
type PlanRequest struct {
	History   []models.SalesRecord
	Menu      []models.MenuItem
	Inventory []models.InventoryRecord
	// Date defaults to tomorrow
	Date    time.Time
	Narrate bool
}

// PlanResult is the output of one planning call
type PlanResult struct {
	PlanID         string
	PredictionDate time.Time
	Plan           models.ProductionPlan
	Fallbacks      []Fallback
	Narrative      string
}

// Plan forecasts every menu dish and builds the production plan. Archiving,
// publishing and narration failures are logged and never fail the plan.
func (s *Service) Plan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	for i := range req.Menu {
		if err := models.ValidateMenuItem(&req.Menu[i]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrData, err)
		}
	}
	date := req.Date
	if date.IsZero() {
		date = s.Tomorrow()
	}

	forecasts, fallbacks, err := s.PredictAll(ctx, req.History, req.Menu, date)
	if err != nil {
		return nil, err
	}
	plan, err := s.planner.Plan(forecasts, req.Inventory, req.Menu)
	if err != nil {
		if errors.Is(err, planner.ErrInvalidForecast) {
			return nil, fmt.Errorf("%w: %v", ErrData, err)
		}
		return nil, err
	}

	result := &PlanResult{PredictionDate: date, Plan: plan, Fallbacks: fallbacks}
	s.metrics.RecordPlan(plan)
	s.monitor.RecordPlan(plan, len(fallbacks))

	if s.archive != nil {
		id, err := s.archive.Archive(ctx, plan, date)
		if err != nil {
			s.logger.Error("failed to archive plan", zap.Error(err))
		}
		result.PlanID = id
	}

	event := publish.PlanEvent{PlanID: result.PlanID, PredictionDate: models.Date{Time: date}, Plan: plan}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish plan", zap.Error(err))
	}

	if req.Narrate && s.narrator != nil {
		text, err := s.narrator.Narrate(ctx, plan)
		if err != nil {
			s.logger.Warn("plan narration failed", zap.Error(err))
		}
		result.Narrative = text
	}

	s.logger.Info("production plan generated",
		zap.String("plan_id", result.PlanID),
		zap.String("date", date.Format("2006-01-02")),
		zap.Int("dishes", plan.Summary.TotalDishes),
		zap.Int("waste_alerts", len(plan.WasteAlerts)),
		zap.Int("fallbacks", len(fallbacks)))
	return result, nil
}

// menuDishes lists menu dish names in order without repeats
func menuDishes(menu []models.MenuItem) []string {
	seen := make(map[string]struct{}, len(menu))
	dishes := make([]string, 0, len(menu))
	for _, item := range menu {
		if _, dup := seen[item.Name]; dup {
			continue
		}
		seen[item.Name] = struct{}{}
		dishes = append(dishes, item.Name)
	}
	return dishes
}

func round2(v float64) float64 {
	out, _ := decimal.NewFromFloat(v).RoundBank(2).Float64()
	return out
}
