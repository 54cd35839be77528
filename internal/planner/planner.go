// Package planner turns per-dish demand forecasts into a production plan.
package planner

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"kitchenplan/internal/models"
)

// ErrInvalidForecast is returned when the forecast sequence itself is broken
var ErrInvalidForecast = errors.New("invalid forecast")

const (
	// SafetyBuffer is applied to predicted demand to get the production quantity
	SafetyBuffer = 1.2
	// CostRatio estimates cost price from selling price
	CostRatio = 0.6
	// ExcessRatio is the stock to demand ratio above which stock is wasted
	ExcessRatio = 1.5
	// HighSeverityRatio marks an excess as high severity
	HighSeverityRatio = 2.0
	// ZeroDemandDonationFloor is the stock above which an unsold dish is donated
	ZeroDemandDonationFloor = 10.0

	minimalDemand = 5.0
	highDemand    = 15.0
)

const (
	actionSkip     = "Skip production - no demand predicted"
	actionDonate   = "Consider donation - no demand expected"
	actionMinimal  = "Minimal production"
	actionModerate = "Moderate production"
	actionHigh     = "High production - strong demand"

	wasteAlertAction = "Consider donation or promotion"
	donationReason   = "Excess inventory detected"
)

// Planner applies the production rules
type Planner struct {
	now func() time.Time
}

// New creates a planner using the wall clock
func New() *Planner {
	return &Planner{now: time.Now}
}

// WithClock returns a planner that reads time from now
func WithClock(now func() time.Time) *Planner {
	return &Planner{now: now}
}

// Plan builds a production plan. Dishes appear in the plan in forecast order.
func (p *Planner) Plan(forecasts []models.DishForecast, inventory []models.InventoryRecord, menu []models.MenuItem) (models.ProductionPlan, error) {
	if err := validate(forecasts); err != nil {
		return models.ProductionPlan{}, err
	}

	now := p.now()
	menuIndex := models.MenuIndex(menu)
	plan := models.ProductionPlan{
		Timestamp:           now,
		Predictions:         make([]models.DishPlan, 0, len(forecasts)),
		WasteAlerts:         []models.WasteAlert{},
		DonationSuggestions: []models.DonationSuggestion{},
	}

	var totalDemand, totalProduction, totalProfit float64
	for _, f := range forecasts {
		dish := p.planDish(f, menuIndex[f.Dish], inventory, now)

		if dish.alert != nil {
			plan.WasteAlerts = append(plan.WasteAlerts, *dish.alert)
		}
		if dish.SuggestDonation {
			plan.DonationSuggestions = append(plan.DonationSuggestions, models.DonationSuggestion{
				Dish:                 f.Dish,
				CurrentStock:         dish.CurrentStock,
				PredictedDemand:      dish.predicted,
				SuggestedDonationQty: math.Max(0, dish.CurrentStock-dish.predicted),
				Reason:               donationReason,
			})
			plan.Summary.DonationSuggestions++
		}
		if dish.WasteRisk {
			plan.Summary.HighWasteRiskCount++
		}

		totalDemand += dish.predicted
		totalProduction += dish.RecommendedProduction
		totalProfit += dish.profit

		dish.PredictedDemand = round(dish.predicted, 1)
		dish.ExpectedProfit = round(dish.profit, 2)
		plan.Predictions = append(plan.Predictions, dish.DishPlan)
	}

	plan.Summary.TotalDishes = len(forecasts)
	plan.Summary.TotalPredictedDemand = round(totalDemand, 1)
	plan.Summary.TotalRecommendedProduction = round(totalProduction, 1)
	plan.Summary.ExpectedProfit = round(totalProfit, 2)
	return plan, nil
}

// dishResult carries the unrounded values alongside the output plan
type dishResult struct {
	models.DishPlan
	predicted float64
	profit    float64
	alert     *models.WasteAlert
}

func (p *Planner) planDish(f models.DishForecast, item models.MenuItem, inventory []models.InventoryRecord, now time.Time) dishResult {
	predicted := math.Max(0, f.Quantity)
	price := item.Price
	stock := item.Stock
	cost := price * CostRatio

	res := dishResult{
		DishPlan: models.DishPlan{
			DishName:              f.Dish,
			CurrentStock:          stock,
			RecommendedProduction: round(predicted*SafetyBuffer, 0),
			SellingPrice:          price,
			InventoryStatus:       models.StatusUnknown,
		},
		predicted: predicted,
	}

	switch {
	case predicted == 0:
		res.Priority = models.PriorityLow
		res.Action = actionSkip
		if stock > ZeroDemandDonationFloor {
			res.SuggestDonation = true
			res.Action = actionDonate
		}
	case predicted < minimalDemand:
		res.Priority = models.PriorityLow
		res.Action = actionMinimal
	case predicted < highDemand:
		res.Priority = models.PriorityMedium
		res.Action = actionModerate
	default:
		res.Priority = models.PriorityHigh
		res.Action = actionHigh
	}

	if rec, ok := matchInventory(f.Dish, inventory); ok {
		status := rec.ResolveStatus(now)
		res.InventoryStatus = status
		if status.IsPerishing() {
			res.WasteRisk = true
			res.Priority = models.PriorityUrgent
			res.Action = fmt.Sprintf("USE IMMEDIATELY - %s inventory", status)
		}
	}

	if excess(stock, predicted) {
		res.WasteRisk = true
		res.SuggestDonation = true
		res.RecommendedProduction = 0
		severity := models.SeverityMedium
		if stock > predicted*HighSeverityRatio {
			severity = models.SeverityHigh
		}
		res.alert = &models.WasteAlert{
			Dish:            f.Dish,
			CurrentStock:    stock,
			PredictedDemand: predicted,
			Excess:          stock - predicted,
			Severity:        severity,
			Message:         fmt.Sprintf("Current stock (%s) exceeds prediction (%s)", formatQty(stock), formatQty(predicted)),
			Action:          wasteAlertAction,
		}
	}

	units := res.RecommendedProduction
	if units <= 0 {
		units = predicted
	}
	res.profit = predicted*price - units*cost
	return res
}

// excess reports whether stock exceeds what the forecast can absorb. With no
// demand at all only stock above the donation floor counts.
func excess(stock, predicted float64) bool {
	if predicted == 0 {
		return stock > ZeroDemandDonationFloor
	}
	return stock > predicted*ExcessRatio
}

// matchInventory returns the first record whose key and the dish name
// contain one another
func matchInventory(dish string, inventory []models.InventoryRecord) (models.InventoryRecord, bool) {
	for _, rec := range inventory {
		if rec.MatchesDish(dish) {
			return rec, true
		}
	}
	return models.InventoryRecord{}, false
}

func validate(forecasts []models.DishForecast) error {
	seen := make(map[string]struct{}, len(forecasts))
	for i, f := range forecasts {
		if f.Dish == "" {
			return fmt.Errorf("%w: forecast %d has no dish name", ErrInvalidForecast, i)
		}
		if _, dup := seen[f.Dish]; dup {
			return fmt.Errorf("%w: dish %q forecast more than once", ErrInvalidForecast, f.Dish)
		}
		if math.IsNaN(f.Quantity) || math.IsInf(f.Quantity, 0) {
			return fmt.Errorf("%w: dish %q has non-finite quantity", ErrInvalidForecast, f.Dish)
		}
		seen[f.Dish] = struct{}{}
	}
	return nil
}

// round rounds half to even at the given number of decimal places
func round(v float64, places int32) float64 {
	out, _ := decimal.NewFromFloat(v).RoundBank(places).Float64()
	return out
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
