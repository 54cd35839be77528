package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"

	"kitchenplan/internal/database"
	"kitchenplan/internal/models"
)

// DefaultPlanLimit is how many archived plans are listed when no limit is given
const DefaultPlanLimit = 7

// PlanRecord is an archived production plan
type PlanRecord struct {
	gorm.Model
	PlanID                     string `gorm:"unique_index"`
	PredictionDate             time.Time
	GeneratedAt                time.Time
	TotalDishes                int
	TotalPredictedDemand       float64
	TotalRecommendedProduction float64
	ExpectedProfit             float64
	WasteAlerts                int
	Items                      []PlanItemRecord `gorm:"foreignkey:PlanRecordID"`
}

// TableName specifies the table name for PlanRecord
func (PlanRecord) TableName() string {
	return "plans"
}

// PlanItemRecord is the archived forecast for one dish
type PlanItemRecord struct {
	gorm.Model
	PlanRecordID          uint `gorm:"index"`
	DishName              string
	PredictedDemand       float64
	RecommendedProduction float64
	Priority              string
	WasteRisk             bool
}

// TableName specifies the table name for PlanItemRecord
func (PlanItemRecord) TableName() string {
	return "plan_items"
}

// ArchivedPlan is the API view of an archived plan
type ArchivedPlan struct {
	ID                         string         `json:"id"`
	PredictionDate             models.Date    `json:"prediction_date"`
	GeneratedAt                time.Time      `json:"generated_at"`
	TotalDishes                int            `json:"total_dishes"`
	TotalPredictedDemand       float64        `json:"total_predicted_demand"`
	TotalRecommendedProduction float64        `json:"total_recommended_production"`
	ExpectedProfit             float64        `json:"expected_profit"`
	WasteAlerts                int            `json:"waste_alerts"`
	Items                      []ArchivedItem `json:"items"`
}

// ArchivedItem is one dish of an archived plan
type ArchivedItem struct {
	DishName              string  `json:"dish_name"`
	PredictedDemand       float64 `json:"predicted_demand"`
	RecommendedProduction float64 `json:"recommended_production"`
	Priority              string  `json:"priority"`
	WasteRisk             bool    `json:"waste_risk"`
}

// PlanRepository archives generated plans
type PlanRepository struct {
	db *gorm.DB
}

// NewPlanRepository migrates the plan tables and returns the repository
func NewPlanRepository(db *gorm.DB) (*PlanRepository, error) {
	if err := database.Migrate(db, &PlanRecord{}, &PlanItemRecord{}); err != nil {
		return nil, err
	}
	return &PlanRepository{db: db}, nil
}

// Archive stores a plan generated for predictionDate and returns its id
func (r *PlanRepository) Archive(ctx context.Context, plan models.ProductionPlan, predictionDate time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rec := PlanRecord{
		PlanID:                     uuid.NewString(),
		PredictionDate:             predictionDate.UTC(),
		GeneratedAt:                plan.Timestamp.UTC(),
		TotalDishes:                plan.Summary.TotalDishes,
		TotalPredictedDemand:       plan.Summary.TotalPredictedDemand,
		TotalRecommendedProduction: plan.Summary.TotalRecommendedProduction,
		ExpectedProfit:             plan.Summary.ExpectedProfit,
		WasteAlerts:                len(plan.WasteAlerts),
	}
	for _, p := range plan.Predictions {
		rec.Items = append(rec.Items, PlanItemRecord{
			DishName:              p.DishName,
			PredictedDemand:       p.PredictedDemand,
			RecommendedProduction: p.RecommendedProduction,
			Priority:              string(p.Priority),
			WasteRisk:             p.WasteRisk,
		})
	}

	if err := r.db.Create(&rec).Error; err != nil {
		return "", fmt.Errorf("failed to archive plan: %w", err)
	}
	return rec.PlanID, nil
}

// Recent returns up to limit archived plans, newest first
func (r *PlanRepository) Recent(ctx context.Context, limit int) ([]ArchivedPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPlanLimit
	}

	var rows []PlanRecord
	err := r.db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Order("id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	out := make([]ArchivedPlan, 0, len(rows))
	for _, row := range rows {
		plan := ArchivedPlan{
			ID:                         row.PlanID,
			PredictionDate:             models.Date{Time: row.PredictionDate},
			GeneratedAt:                row.GeneratedAt,
			TotalDishes:                row.TotalDishes,
			TotalPredictedDemand:       row.TotalPredictedDemand,
			TotalRecommendedProduction: row.TotalRecommendedProduction,
			ExpectedProfit:             row.ExpectedProfit,
			WasteAlerts:                row.WasteAlerts,
			Items:                      make([]ArchivedItem, 0, len(row.Items)),
		}
		for _, item := range row.Items {
			plan.Items = append(plan.Items, ArchivedItem{
				DishName:              item.DishName,
				PredictedDemand:       item.PredictedDemand,
				RecommendedProduction: item.RecommendedProduction,
				Priority:              item.Priority,
				WasteRisk:             item.WasteRisk,
			})
		}
		out = append(out, plan)
	}
	return out, nil
}
