package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kitchenplan/internal/estimator"
	"kitchenplan/internal/models"
)

// MetricsCollector owns the prometheus collectors on a private registry
type MetricsCollector struct {
	registry *prometheus.Registry

	predictionLatency *prometheus.HistogramVec
	fallbacks         *prometheus.CounterVec
	plans             prometheus.Counter
	wasteAlerts       *prometheus.CounterVec
	donations         prometheus.Counter
	trainingRMSE      prometheus.Gauge
	trainingRows      *prometheus.GaugeVec
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{
		registry: prometheus.NewRegistry(),
		predictionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kitchenplan_prediction_duration_seconds",
				Help:    "Time taken to serve prediction requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kitchenplan_prediction_fallbacks_total",
				Help: "Dish predictions replaced by the historical mean",
			},
			[]string{"reason"},
		),
		plans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kitchenplan_plans_total",
			Help: "Production plans generated",
		}),
		wasteAlerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kitchenplan_waste_alerts_total",
				Help: "Waste alerts raised by severity",
			},
			[]string{"severity"},
		),
		donations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kitchenplan_donation_suggestions_total",
			Help: "Donation suggestions raised",
		}),
		trainingRMSE: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kitchenplan_model_test_rmse",
			Help: "Test RMSE of the loaded model",
		}),
		trainingRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kitchenplan_model_training_rows",
				Help: "Rows used by the last training run",
			},
			[]string{"split"},
		),
	}

	mc.registry.MustRegister(
		mc.predictionLatency,
		mc.fallbacks,
		mc.plans,
		mc.wasteAlerts,
		mc.donations,
		mc.trainingRMSE,
		mc.trainingRows,
	)
	return mc
}

// Registry returns the private registry
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// Handler serves the registry in the prometheus exposition format
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
}

// ObservePrediction records how long an operation took
func (mc *MetricsCollector) ObservePrediction(operation string, elapsed time.Duration) {
	mc.predictionLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordFallback counts a prediction replaced by the historical mean
func (mc *MetricsCollector) RecordFallback(reason string) {
	mc.fallbacks.WithLabelValues(reason).Inc()
}

// RecordPlan counts a plan and its alerts
func (mc *MetricsCollector) RecordPlan(plan models.ProductionPlan) {
	mc.plans.Inc()
	for _, alert := range plan.WasteAlerts {
		mc.wasteAlerts.WithLabelValues(string(alert.Severity)).Inc()
	}
	mc.donations.Add(float64(len(plan.DonationSuggestions)))
}

// RecordTraining publishes the metrics of a newly trained model
func (mc *MetricsCollector) RecordTraining(metrics estimator.Metrics) {
	mc.trainingRMSE.Set(metrics.TestRMSE)
	mc.trainingRows.WithLabelValues("train").Set(float64(metrics.TrainSize))
	mc.trainingRows.WithLabelValues("test").Set(float64(metrics.TestSize))
}
