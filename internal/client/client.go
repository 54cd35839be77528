// Package client talks to a running kitchenplan server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"kitchenplan/internal/api"
	"kitchenplan/internal/estimator"
	"kitchenplan/internal/forecast"
	"kitchenplan/internal/models"
	"kitchenplan/internal/repository"
)

const (
	// DefaultBaseURL is used when KITCHENPLAN_API_URL is not set
	DefaultBaseURL = "http://localhost:8080"
	defaultTimeout = 30 * time.Second
)

// APIError is a failure reported by the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client handles requests to the kitchenplan API
type Client struct {
	httpClient *http.Client
	BaseURL    string
}

// New creates a client for baseURL. An empty baseURL falls back to
// KITCHENPLAN_API_URL and then to DefaultBaseURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("KITCHENPLAN_API_URL")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		BaseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Health is the health endpoint response
type Health struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	ModelLoaded bool   `json:"model_loaded"`
}

// PlanResponse is a generated production plan
type PlanResponse struct {
	Success        bool                  `json:"success"`
	PlanID         string                `json:"plan_id"`
	PredictionDate string                `json:"prediction_date"`
	Plan           models.ProductionPlan `json:"production_plan"`
	Fallbacks      []forecast.Fallback   `json:"fallbacks"`
	Narrative      string                `json:"narrative"`
}

// TrainResponse describes a newly trained model
type TrainResponse struct {
	Success bool              `json:"success"`
	ModelID string            `json:"model_id"`
	Metrics estimator.Metrics `json:"metrics"`
	Message string            `json:"message"`
}

// DishResponse is a single dish forecast
type DishResponse struct {
	Success         bool    `json:"success"`
	DishName        string  `json:"dish_name"`
	PredictedDemand float64 `json:"predicted_demand"`
	PredictionDate  string  `json:"prediction_date"`
}

// Health checks if the API is up and whether a model is loaded
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Predict requests a production plan
func (c *Client) Predict(ctx context.Context, req api.PredictRequest) (*PlanResponse, error) {
	var out PlanResponse
	if err := c.do(ctx, http.MethodPost, "/predict", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Train trains a model on req
func (c *Client) Train(ctx context.Context, req api.TrainRequest) (*TrainResponse, error) {
	var out TrainResponse
	if err := c.do(ctx, http.MethodPost, "/train", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PredictDish forecasts one dish
func (c *Client) PredictDish(ctx context.Context, dish string, req api.DishRequest) (*DishResponse, error) {
	var out DishResponse
	if err := c.do(ctx, http.MethodPost, "/predict/dish/"+url.PathEscape(dish), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadSales stores sales history on the server and returns how many
// records were inserted
func (c *Client) UploadSales(ctx context.Context, records []models.SalesRecord) (int, error) {
	var out struct {
		Inserted int `json:"inserted"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/sales", api.SalesRequest{Sales: records}, &out); err != nil {
		return 0, err
	}
	return out.Inserted, nil
}

// RecentPlans lists archived plans, newest first
func (c *Client) RecentPlans(ctx context.Context, limit int) ([]repository.ArchivedPlan, error) {
	path := "/api/v1/plans"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Plans []repository.ArchivedPlan `json:"plans"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Plans, nil
}

// Monitor returns the server's monitor snapshot
func (c *Client) Monitor(ctx context.Context) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if err := c.do(ctx, http.MethodGet, "/api/v1/monitor", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		var failure struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &failure) == nil && failure.Error != "" {
			msg = failure.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
