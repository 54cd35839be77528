// Package narrator writes a short kitchen briefing for a production plan
// using a language model.
package narrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"kitchenplan/internal/models"
)

// Config selects the language model
type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
}

// Narrator summarises plans in plain language
type Narrator struct {
	model llms.Model
}

// New wraps an existing model
func New(model llms.Model) *Narrator {
	return &Narrator{model: model}
}

// NewOpenAI creates a narrator backed by an OpenAI chat model. The API key
// falls back to OPENAI_API_KEY.
func NewOpenAI(cfg Config) (*Narrator, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("narrator api key not set")
	}

	llm, err := openai.New(
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI model: %w", err)
	}
	return New(llm), nil
}

// Narrate returns the briefing for plan
func (n *Narrator) Narrate(ctx context.Context, plan models.ProductionPlan) (string, error) {
	text, err := llms.GenerateFromSinglePrompt(ctx, n.model, BuildPrompt(plan),
		llms.WithTemperature(0.2),
		llms.WithMaxTokens(300),
	)
	if err != nil {
		return "", fmt.Errorf("narration failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// BuildPrompt renders the plan as a prompt for the kitchen briefing
func BuildPrompt(plan models.ProductionPlan) string {
	var b strings.Builder
	b.WriteString("You are the sous chef briefing the kitchen before service. ")
	b.WriteString("Summarise tomorrow's production plan in at most five short sentences. ")
	b.WriteString("Lead with urgent items, then waste risks and donations.\n\n")

	fmt.Fprintf(&b, "Dishes: %d, predicted covers: %.1f, planned production: %.1f, expected profit: %.2f\n",
		plan.Summary.TotalDishes,
		plan.Summary.TotalPredictedDemand,
		plan.Summary.TotalRecommendedProduction,
		plan.Summary.ExpectedProfit)

	for _, d := range plan.Predictions {
		fmt.Fprintf(&b, "- %s: demand %.1f, stock %.0f, cook %.0f, priority %s, %s\n",
			d.DishName, d.PredictedDemand, d.CurrentStock, d.RecommendedProduction, d.Priority, d.Action)
	}
	for _, a := range plan.WasteAlerts {
		fmt.Fprintf(&b, "Waste alert (%s): %s\n", a.Severity, a.Message)
	}
	for _, s := range plan.DonationSuggestions {
		fmt.Fprintf(&b, "Donation: %.1f portions of %s\n", s.SuggestedDonationQty, s.Dish)
	}
	return b.String()
}
