// Package monitoring keeps an in-process snapshot of service activity and
// exports prometheus metrics.
package monitoring

import (
	"sync"
	"time"

	"kitchenplan/internal/estimator"
	"kitchenplan/internal/models"
)

// Monitor collects and provides metrics for the service
type Monitor struct {
	metrics      map[string]interface{}
	metricsMutex sync.RWMutex
	startTime    time.Time
}

// NewMonitor creates a new monitoring instance
func NewMonitor() *Monitor {
	return &Monitor{
		metrics:   make(map[string]interface{}),
		startTime: time.Now(),
	}
}

// RecordMetric records a metric value
func (m *Monitor) RecordMetric(name string, value interface{}) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()
	m.metrics[name] = value
}

// IncrementCounter adds one to an integer metric
func (m *Monitor) IncrementCounter(name string) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()
	n, _ := m.metrics[name].(int)
	m.metrics[name] = n + 1
}

// GetMetrics returns all current metrics
func (m *Monitor) GetMetrics() map[string]interface{} {
	m.metricsMutex.RLock()
	defer m.metricsMutex.RUnlock()

	// Create a copy to avoid concurrent map access
	metrics := make(map[string]interface{}, len(m.metrics)+1)
	for k, v := range m.metrics {
		metrics[k] = v
	}
	metrics["uptime_seconds"] = time.Since(m.startTime).Seconds()

	return metrics
}

// RecordTrainingResult records the outcome of a training run
func (m *Monitor) RecordTrainingResult(modelID string, metrics estimator.Metrics) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()

	m.metrics["model_id"] = modelID
	m.metrics["train_rmse"] = metrics.TrainRMSE
	m.metrics["test_rmse"] = metrics.TestRMSE
	m.metrics["test_mae"] = metrics.TestMAE
	m.metrics["test_r2"] = metrics.TestR2
	m.metrics["train_size"] = metrics.TrainSize
	m.metrics["test_size"] = metrics.TestSize
	m.metrics["num_features"] = metrics.NumFeatures
	m.metrics["last_trained"] = time.Now().Format(time.RFC3339)
}

// RecordPlan records the summary of the latest production plan
func (m *Monitor) RecordPlan(plan models.ProductionPlan, fallbacks int) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()

	n, _ := m.metrics["plans_generated"].(int)
	m.metrics["plans_generated"] = n + 1
	m.metrics["last_plan_dishes"] = plan.Summary.TotalDishes
	m.metrics["last_plan_demand"] = plan.Summary.TotalPredictedDemand
	m.metrics["last_plan_waste_alerts"] = len(plan.WasteAlerts)
	m.metrics["last_plan_fallbacks"] = fallbacks
	m.metrics["last_planned"] = plan.Timestamp.Format(time.RFC3339)
}
