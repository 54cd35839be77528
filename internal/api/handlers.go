package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kitchenplan/internal/forecast"
	"kitchenplan/internal/models"
	"kitchenplan/internal/repository"
)

// isoLayout matches the timestamp format clients already parse
const isoLayout = "2006-01-02T15:04:05"

// PredictRequest asks for a production plan
type PredictRequest struct {
	HistoricalData   []models.SalesRecord     `json:"historical_data"`
	MenuItems        []models.MenuItem        `json:"menu_items"`
	InventoryData    []models.InventoryRecord `json:"inventory_data"`
	PredictionDate   *models.Date             `json:"prediction_date"`
	UseStoredHistory bool                     `json:"use_stored_history"`
	Narrate          bool                     `json:"narrate"`
}

// TrainRequest asks for a new model
type TrainRequest struct {
	TrainingData     []models.SalesRecord `json:"training_data"`
	UseStoredHistory bool                 `json:"use_stored_history"`
}

// DishRequest asks for a single dish forecast
type DishRequest struct {
	HistoricalData   []models.SalesRecord `json:"historical_data"`
	PredictionDate   *models.Date         `json:"prediction_date"`
	UseStoredHistory bool                 `json:"use_stored_history"`
}

// SalesRequest carries sales history to store
type SalesRequest struct {
	Sales []models.SalesRecord `json:"sales"`
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", forecast.ErrData, err))
		return false
	}
	return true
}

// handleHealth reports liveness and whether a model is loaded
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"service":      ServiceName,
		"model_loaded": s.service.ModelLoaded(),
	})
}

// handlePredict forecasts every menu dish and returns the production plan
func (s *Server) handlePredict(c *gin.Context) {
	var req PredictRequest
	if !bind(c, &req) {
		return
	}

	result, err := s.plan(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, planResponse(result))
}

func (s *Server) plan(ctx context.Context, req PredictRequest) (*forecast.PlanResult, error) {
	history, err := s.history(ctx, req.HistoricalData, req.UseStoredHistory, repository.SalesFilter{})
	if err != nil {
		return nil, err
	}
	planReq := forecast.PlanRequest{
		History:   history,
		Menu:      req.MenuItems,
		Inventory: req.InventoryData,
		Narrate:   req.Narrate,
	}
	if req.PredictionDate != nil {
		planReq.Date = req.PredictionDate.Time
	}
	return s.service.Plan(ctx, planReq)
}

func planResponse(result *forecast.PlanResult) gin.H {
	resp := gin.H{
		"success":         true,
		"production_plan": result.Plan,
		"fallbacks":       result.Fallbacks,
		"prediction_date": result.PredictionDate.Format("2006-01-02"),
	}
	if result.PlanID != "" {
		resp["plan_id"] = result.PlanID
	}
	if result.Narrative != "" {
		resp["narrative"] = result.Narrative
	}
	return resp
}

// handleTrain fits, saves and loads a new model
func (s *Server) handleTrain(c *gin.Context) {
	var req TrainRequest
	if !bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	records, err := s.history(ctx, req.TrainingData, req.UseStoredHistory, repository.SalesFilter{})
	if err != nil {
		respondError(c, err)
		return
	}

	artifact, err := s.service.Train(ctx, records)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"metrics":  artifact.Metrics,
		"model_id": artifact.ID,
		"message":  "Model trained successfully",
	})
}

// handlePredictDish forecasts one dish
func (s *Server) handlePredictDish(c *gin.Context) {
	var req DishRequest
	if !bind(c, &req) {
		return
	}
	dish := c.Param("name")

	ctx := c.Request.Context()
	history, err := s.history(ctx, req.HistoricalData, req.UseStoredHistory, repository.SalesFilter{Dish: dish})
	if err != nil {
		respondError(c, err)
		return
	}

	date := s.service.Tomorrow()
	if req.PredictionDate != nil {
		date = req.PredictionDate.Time
	}

	demand, err := s.service.PredictDish(ctx, history, dish, date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"dish_name":        dish,
		"predicted_demand": demand,
		"prediction_date":  date.Format(isoLayout),
	})
}

// handleIngestSales stores sales history for later training and planning
func (s *Server) handleIngestSales(c *gin.Context) {
	if s.sales == nil {
		respondError(c, errUnavailable)
		return
	}
	var req SalesRequest
	if !bind(c, &req) {
		return
	}
	if len(req.Sales) == 0 {
		respondError(c, fmt.Errorf("%w: no sales records given", forecast.ErrData))
		return
	}

	n, err := s.sales.Insert(c.Request.Context(), req.Sales)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "inserted": n})
}

// handleListPlans returns the most recent archived plans
func (s *Server) handleListPlans(c *gin.Context) {
	if s.plans == nil {
		respondError(c, errUnavailable)
		return
	}

	limit := repository.DefaultPlanLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(c, fmt.Errorf("%w: limit must be a positive integer", forecast.ErrData))
			return
		}
		limit = n
	}

	plans, err := s.plans.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "plans": plans})
}

// handleMonitor returns the in-process monitor snapshot
func (s *Server) handleMonitor(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Monitor().GetMetrics())
}

// history returns the request records, preceded by stored history when
// useStored is set.
func (s *Server) history(ctx context.Context, given []models.SalesRecord, useStored bool, filter repository.SalesFilter) ([]models.SalesRecord, error) {
	if !useStored {
		return given, nil
	}
	if s.sales == nil {
		return nil, errUnavailable
	}
	stored, err := s.sales.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return append(stored, given...), nil
}
