package models

import "time"

// Priority represents how urgently a dish needs kitchen attention
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// Severity grades a waste alert
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// DishForecast is the demand forecast for one dish
type DishForecast struct {
	Dish     string  `json:"dish"`
	Quantity float64 `json:"quantity"`
}

// DishPlan is the production recommendation for a single dish
type DishPlan struct {
	DishName              string          `json:"dish_name"`
	PredictedDemand       float64         `json:"predicted_demand"`
	CurrentStock          float64         `json:"current_stock"`
	RecommendedProduction float64         `json:"recommended_production"`
	Priority              Priority        `json:"priority"`
	Action                string          `json:"action"`
	WasteRisk             bool            `json:"waste_risk"`
	SuggestDonation       bool            `json:"suggest_donation"`
	SellingPrice          float64         `json:"selling_price"`
	ExpectedProfit        float64         `json:"expected_profit"`
	InventoryStatus       InventoryStatus `json:"inventory_status"`
}

// WasteAlert flags stock that exceeds the expected demand
type WasteAlert struct {
	Dish            string   `json:"dish"`
	CurrentStock    float64  `json:"current_stock"`
	PredictedDemand float64  `json:"predicted_demand"`
	Excess          float64  `json:"excess"`
	Severity        Severity `json:"severity"`
	Message         string   `json:"message"`
	Action          string   `json:"action"`
}

// DonationSuggestion proposes giving away surplus stock
type DonationSuggestion struct {
	Dish                 string  `json:"dish"`
	CurrentStock         float64 `json:"current_stock"`
	PredictedDemand      float64 `json:"predicted_demand"`
	SuggestedDonationQty float64 `json:"suggested_donation_qty"`
	Reason               string  `json:"reason"`
}

// PlanSummary aggregates a production plan
type PlanSummary struct {
	TotalDishes                int     `json:"total_dishes"`
	TotalPredictedDemand       float64 `json:"total_predicted_demand"`
	TotalRecommendedProduction float64 `json:"total_recommended_production"`
	HighWasteRiskCount         int     `json:"high_waste_risk_count"`
	DonationSuggestions        int     `json:"donation_suggestions"`
	ExpectedProfit             float64 `json:"expected_profit"`
}

// ProductionPlan is the complete recommendation produced by one planning call
type ProductionPlan struct {
	Timestamp           time.Time            `json:"timestamp"`
	Predictions         []DishPlan           `json:"predictions"`
	Summary             PlanSummary          `json:"summary"`
	WasteAlerts         []WasteAlert         `json:"waste_alerts"`
	DonationSuggestions []DonationSuggestion `json:"donation_suggestions"`
}
