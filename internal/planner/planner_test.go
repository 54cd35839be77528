package planner

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitchenplan/internal/models"
)

var fixedNow = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func testPlanner() *Planner {
	return WithClock(func() time.Time { return fixedNow })
}

func biryani(stock float64) ([]models.DishForecast, []models.InventoryRecord, []models.MenuItem) {
	return []models.DishForecast{{Dish: "Biryani", Quantity: 42.5}},
		[]models.InventoryRecord{{Ingredient: "rice", Status: models.StatusGood}},
		[]models.MenuItem{{Name: "Biryani", Price: 250, Stock: stock}}
}

func TestBiryaniHighDemand(t *testing.T) {
	plan, err := testPlanner().Plan(biryani(60))
	require.NoError(t, err)
	require.Len(t, plan.Predictions, 1)

	dish := plan.Predictions[0]
	assert.Equal(t, "Biryani", dish.DishName)
	assert.Equal(t, 42.5, dish.PredictedDemand)
	assert.Equal(t, 51.0, dish.RecommendedProduction)
	assert.Equal(t, models.PriorityHigh, dish.Priority)
	assert.Equal(t, "High production - strong demand", dish.Action)
	assert.False(t, dish.WasteRisk)
	assert.False(t, dish.SuggestDonation)
	assert.Equal(t, models.StatusUnknown, dish.InventoryStatus)
	assert.Equal(t, 2975.0, dish.ExpectedProfit)

	assert.Empty(t, plan.WasteAlerts)
	assert.Empty(t, plan.DonationSuggestions)
	assert.Equal(t, fixedNow, plan.Timestamp)
}

func TestBiryaniExcessStock(t *testing.T) {
	plan, err := testPlanner().Plan(biryani(100))
	require.NoError(t, err)

	dish := plan.Predictions[0]
	assert.Equal(t, 0.0, dish.RecommendedProduction)
	assert.True(t, dish.WasteRisk)
	assert.True(t, dish.SuggestDonation)
	assert.Equal(t, 4250.0, dish.ExpectedProfit)

	require.Len(t, plan.WasteAlerts, 1)
	alert := plan.WasteAlerts[0]
	assert.Equal(t, models.SeverityHigh, alert.Severity)
	assert.Equal(t, 57.5, alert.Excess)
	assert.Equal(t, "Current stock (100) exceeds prediction (42.5)", alert.Message)
	assert.Equal(t, "Consider donation or promotion", alert.Action)

	require.Len(t, plan.DonationSuggestions, 1)
	assert.Equal(t, 57.5, plan.DonationSuggestions[0].SuggestedDonationQty)
	assert.Equal(t, "Excess inventory detected", plan.DonationSuggestions[0].Reason)

	assert.Equal(t, 1, plan.Summary.HighWasteRiskCount)
	assert.Equal(t, 1, plan.Summary.DonationSuggestions)
}

func TestZeroDemand(t *testing.T) {
	t.Run("stock above floor is donated", func(t *testing.T) {
		plan, err := testPlanner().Plan(
			[]models.DishForecast{{Dish: "Kheer", Quantity: 0}}, nil,
			[]models.MenuItem{{Name: "Kheer", Price: 80, Stock: 15}})
		require.NoError(t, err)

		dish := plan.Predictions[0]
		assert.Equal(t, models.PriorityLow, dish.Priority)
		assert.Equal(t, "Consider donation - no demand expected", dish.Action)
		assert.True(t, dish.SuggestDonation)
		assert.Equal(t, 0.0, dish.RecommendedProduction)
		require.Len(t, plan.DonationSuggestions, 1)
		assert.Equal(t, 15.0, plan.DonationSuggestions[0].SuggestedDonationQty)
	})

	t.Run("small stock is skipped", func(t *testing.T) {
		plan, err := testPlanner().Plan(
			[]models.DishForecast{{Dish: "Kheer", Quantity: 0}}, nil,
			[]models.MenuItem{{Name: "Kheer", Price: 80, Stock: 5}})
		require.NoError(t, err)

		dish := plan.Predictions[0]
		assert.Equal(t, "Skip production - no demand predicted", dish.Action)
		assert.False(t, dish.SuggestDonation)
		assert.False(t, dish.WasteRisk)
		assert.Empty(t, plan.WasteAlerts)
		assert.Empty(t, plan.DonationSuggestions)
	})

	t.Run("negative forecast is clamped", func(t *testing.T) {
		plan, err := testPlanner().Plan([]models.DishForecast{{Dish: "Kheer", Quantity: -3}}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 0.0, plan.Predictions[0].PredictedDemand)
		assert.Equal(t, "Skip production - no demand predicted", plan.Predictions[0].Action)
	})
}

func TestDemandTiers(t *testing.T) {
	tests := []struct {
		qty      float64
		priority models.Priority
		action   string
	}{
		{0.5, models.PriorityLow, "Minimal production"},
		{4.99, models.PriorityLow, "Minimal production"},
		{5, models.PriorityMedium, "Moderate production"},
		{14.9, models.PriorityMedium, "Moderate production"},
		{15, models.PriorityHigh, "High production - strong demand"},
	}
	for _, tt := range tests {
		plan, err := testPlanner().Plan([]models.DishForecast{{Dish: "Dosa", Quantity: tt.qty}}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, tt.priority, plan.Predictions[0].Priority, "qty %v", tt.qty)
		assert.Equal(t, tt.action, plan.Predictions[0].Action, "qty %v", tt.qty)
	}
}

func TestPerishingInventoryIsUrgent(t *testing.T) {
	inventory := []models.InventoryRecord{
		{Ingredient: "chicken", Status: models.StatusCritical},
		{ItemName: "Paneer", ExpiryDate: models.NewDate(fixedNow.Add(48 * time.Hour))},
	}
	forecasts := []models.DishForecast{
		{Dish: "Chicken Curry", Quantity: 30},
		{Dish: "Paneer Tikka", Quantity: 2},
	}

	plan, err := testPlanner().Plan(forecasts, inventory, nil)
	require.NoError(t, err)

	chicken := plan.Predictions[0]
	assert.Equal(t, models.PriorityUrgent, chicken.Priority)
	assert.Equal(t, "USE IMMEDIATELY - Critical inventory", chicken.Action)
	assert.True(t, chicken.WasteRisk)
	assert.Equal(t, models.StatusCritical, chicken.InventoryStatus)

	paneer := plan.Predictions[1]
	assert.Equal(t, models.PriorityUrgent, paneer.Priority)
	assert.Equal(t, "USE IMMEDIATELY - Near Expiry inventory", paneer.Action)
	assert.Equal(t, models.StatusNearExpiry, paneer.InventoryStatus)
	assert.Equal(t, 2, plan.Summary.HighWasteRiskCount)
}

func TestInventoryFirstMatchWins(t *testing.T) {
	inventory := []models.InventoryRecord{
		{Status: models.StatusCritical},
		{Ingredient: "dal", Status: models.StatusGood},
		{Ingredient: "dal makhani", Status: models.StatusCritical},
	}
	plan, err := testPlanner().Plan([]models.DishForecast{{Dish: "Dal Makhani", Quantity: 8}}, inventory, nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusGood, plan.Predictions[0].InventoryStatus)
	assert.Equal(t, models.PriorityMedium, plan.Predictions[0].Priority)
}

func TestMediumSeverity(t *testing.T) {
	plan, err := testPlanner().Plan(
		[]models.DishForecast{{Dish: "Idli", Quantity: 10}}, nil,
		[]models.MenuItem{{Name: "Idli", Price: 40, Stock: 18}})
	require.NoError(t, err)
	require.Len(t, plan.WasteAlerts, 1)
	assert.Equal(t, models.SeverityMedium, plan.WasteAlerts[0].Severity)
	assert.Equal(t, 0.0, plan.Predictions[0].RecommendedProduction)
}

func TestExcessOverridesUrgent(t *testing.T) {
	plan, err := testPlanner().Plan(
		[]models.DishForecast{{Dish: "Fish Fry", Quantity: 4}},
		[]models.InventoryRecord{{Ingredient: "fish", Status: models.StatusNearExpiry}},
		[]models.MenuItem{{Name: "Fish Fry", Price: 300, Stock: 30}})
	require.NoError(t, err)

	dish := plan.Predictions[0]
	assert.Equal(t, models.PriorityUrgent, dish.Priority)
	assert.Equal(t, 0.0, dish.RecommendedProduction)
	assert.True(t, dish.SuggestDonation)
}

func TestPlanPreservesOrderAndSummarises(t *testing.T) {
	forecasts := []models.DishForecast{
		{Dish: "Vada", Quantity: 8.75},
		{Dish: "Appam", Quantity: 1.25},
		{Dish: "Masala Dosa", Quantity: 2.349},
	}
	plan, err := testPlanner().Plan(forecasts, nil, nil)
	require.NoError(t, err)

	names := make([]string, 0, len(plan.Predictions))
	for _, p := range plan.Predictions {
		names = append(names, p.DishName)
	}
	assert.Equal(t, []string{"Vada", "Appam", "Masala Dosa"}, names)

	// 8.75 * 1.2 = 10.5 rounds half to even
	assert.Equal(t, 10.0, plan.Predictions[0].RecommendedProduction)
	assert.Equal(t, 1.2, plan.Predictions[1].PredictedDemand)

	assert.Equal(t, 3, plan.Summary.TotalDishes)
	assert.Equal(t, 12.3, plan.Summary.TotalPredictedDemand)
	assert.Equal(t, 15.0, plan.Summary.TotalRecommendedProduction)
}

func TestPlanRejectsInvalidForecasts(t *testing.T) {
	tests := map[string][]models.DishForecast{
		"empty name": {{Dish: "", Quantity: 1}},
		"duplicate":  {{Dish: "Vada", Quantity: 1}, {Dish: "Vada", Quantity: 2}},
		"nan":        {{Dish: "Vada", Quantity: math.NaN()}},
	}
	for name, forecasts := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := testPlanner().Plan(forecasts, nil, nil)
			assert.ErrorIs(t, err, ErrInvalidForecast)
		})
	}
}

func TestPlanEmptyForecast(t *testing.T) {
	plan, err := testPlanner().Plan(nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Predictions)
	assert.NotNil(t, plan.WasteAlerts)
	assert.Zero(t, plan.Summary.TotalDishes)
}
