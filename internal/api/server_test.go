package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kitchenplan/internal/database"
	"kitchenplan/internal/estimator"
	"kitchenplan/internal/forecast"
	"kitchenplan/internal/models"
	"kitchenplan/internal/repository"
	"kitchenplan/internal/storage"
)

var today = time.Date(2024, 4, 30, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	server  *Server
	service *forecast.Service
}

func newTestEnv(t *testing.T, withDB bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	params := estimator.DefaultParams()
	params.Rounds = 15

	var (
		sales SalesStore
		plans PlanLister
		opts  = []forecast.Option{forecast.WithClock(func() time.Time { return today })}
	)
	if withDB {
		db, err := database.Open(database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		salesRepo, err := repository.NewSalesRepository(db)
		require.NoError(t, err)
		planRepo, err := repository.NewPlanRepository(db)
		require.NoError(t, err)
		sales, plans = salesRepo, planRepo
		opts = append(opts, forecast.WithArchive(planRepo))
	}

	store := storage.NewFileStore(t.TempDir())
	service := forecast.NewService(forecast.Config{Params: params}, store, zap.NewNop(), opts...)
	return &testEnv{
		server:  NewServer(service, sales, plans, zap.NewNop()),
		service: service,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return w, response
}

func biryaniSales(n int) []models.SalesRecord {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.SalesRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.NewSalesRecord(start.AddDate(0, 0, i), "Biryani", float64(20+(i*7)%31), 250, 150))
	}
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)

	w, response := env.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, ServiceName, response["service"])
	assert.Equal(t, false, response["model_loaded"])
}

func TestPredictWithoutHistoryPlansZeroDemand(t *testing.T) {
	env := newTestEnv(t, false)

	w, response := env.do(t, http.MethodPost, "/predict", gin.H{
		"menu_items": []models.MenuItem{
			{Name: "Biryani", Price: 250, Stock: 15},
			{Name: "Dosa", Price: 90},
		},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, response["success"])
	assert.Equal(t, "2024-05-01", response["prediction_date"])
	assert.Empty(t, response["fallbacks"])

	plan := response["production_plan"].(map[string]interface{})
	predictions := plan["predictions"].([]interface{})
	require.Len(t, predictions, 2)
	first := predictions[0].(map[string]interface{})
	assert.Equal(t, "Biryani", first["dish_name"])
	assert.Equal(t, 0.0, first["predicted_demand"])
	assert.Equal(t, 0.0, first["recommended_production"])
	assert.Len(t, plan["donation_suggestions"], 1)
}

func TestPredictRequiresModelWhenHistoryGiven(t *testing.T) {
	env := newTestEnv(t, false)

	w, response := env.do(t, http.MethodPost, "/predict", gin.H{
		"historical_data": biryaniSales(10),
		"menu_items":      []models.MenuItem{{Name: "Biryani", Price: 250}},
	})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, false, response["success"])
	assert.Equal(t, forecast.ErrModelNotLoaded.Error(), response["error"])
}

func TestPredictRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		name string
		body interface{}
	}{
		{name: "malformed json", body: `{"menu_items": [`},
		{name: "bad date", body: `{"menu_items": [], "prediction_date": "tomorrow"}`},
		{name: "unnamed dish", body: gin.H{"menu_items": []models.MenuItem{{Price: 10}}}},
		{name: "negative price", body: gin.H{"menu_items": []models.MenuItem{{Name: "Dosa", Price: -1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := env.do(t, http.MethodPost, "/predict", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, response["success"])
			assert.NotEmpty(t, response["error"])
		})
	}
}

func TestTrainAndPredictDish(t *testing.T) {
	env := newTestEnv(t, false)

	w, response := env.do(t, http.MethodPost, "/train", gin.H{"training_data": biryaniSales(49)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, response["error"], "at least 50")

	w, response = env.do(t, http.MethodPost, "/train", gin.H{"training_data": biryaniSales(60)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, response["success"])
	assert.Equal(t, "Model trained successfully", response["message"])
	assert.NotEmpty(t, response["model_id"])
	metrics := response["metrics"].(map[string]interface{})
	assert.Contains(t, metrics, "test_rmse")
	assert.Contains(t, metrics, "num_features")
	assert.True(t, env.service.ModelLoaded())

	w, response = env.do(t, http.MethodPost, "/predict/dish/Biryani", gin.H{
		"historical_data": biryaniSales(60),
		"prediction_date": "2024-03-01",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Biryani", response["dish_name"])
	assert.Equal(t, "2024-03-01T00:00:00", response["prediction_date"])
	assert.GreaterOrEqual(t, response["predicted_demand"].(float64), 0.0)

	w, response = env.do(t, http.MethodPost, "/predict/dish/Dosa", gin.H{"historical_data": biryaniSales(60)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, response["predicted_demand"])
	assert.Equal(t, "2024-05-01T00:00:00", response["prediction_date"])
}

func TestPredictDishWithoutModel(t *testing.T) {
	env := newTestEnv(t, false)

	w, response := env.do(t, http.MethodPost, "/predict/dish/Biryani", gin.H{})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, false, response["success"])
}

func TestStoredHistoryFlow(t *testing.T) {
	env := newTestEnv(t, true)

	w, response := env.do(t, http.MethodPost, "/api/v1/sales", gin.H{"sales": biryaniSales(60)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 60.0, response["inserted"])

	w, _ = env.do(t, http.MethodPost, "/train", gin.H{"use_stored_history": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, response = env.do(t, http.MethodPost, "/predict", gin.H{
		"use_stored_history": true,
		"menu_items":         []models.MenuItem{{Name: "Biryani", Price: 250, Stock: 10}},
		"inventory_data":     []models.InventoryRecord{{Ingredient: "biryani", Status: models.StatusCritical}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	planID, _ := response["plan_id"].(string)
	assert.NotEmpty(t, planID)

	plan := response["production_plan"].(map[string]interface{})
	first := plan["predictions"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, string(models.PriorityUrgent), first["priority"])

	w, response = env.do(t, http.MethodGet, "/api/v1/plans?limit=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	plans := response["plans"].([]interface{})
	require.Len(t, plans, 1)
	assert.Equal(t, planID, plans[0].(map[string]interface{})["id"])
}

func TestIngestSalesRejectsInvalidRecords(t *testing.T) {
	env := newTestEnv(t, true)

	w, response := env.do(t, http.MethodPost, "/api/v1/sales", `{"sales": [{"dish_name": "Dosa"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, response["success"])

	w, _ = env.do(t, http.MethodPost, "/api/v1/sales", gin.H{"sales": []models.SalesRecord{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListPlansValidatesLimit(t *testing.T) {
	env := newTestEnv(t, true)

	w, _ := env.do(t, http.MethodGet, "/api/v1/plans?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, response := env.do(t, http.MethodGet, "/api/v1/plans", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, response["plans"])
}

func TestEndpointsWithoutDatabase(t *testing.T) {
	env := newTestEnv(t, false)

	w, _ := env.do(t, http.MethodPost, "/api/v1/sales", gin.H{"sales": biryaniSales(1)})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, _ = env.do(t, http.MethodGet, "/api/v1/plans", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, _ = env.do(t, http.MethodPost, "/train", gin.H{"use_stored_history": true})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMonitorSnapshot(t *testing.T) {
	env := newTestEnv(t, false)
	env.do(t, http.MethodPost, "/predict", gin.H{"menu_items": []models.MenuItem{{Name: "Dosa", Price: 90}}})

	w, response := env.do(t, http.MethodGet, "/api/v1/monitor", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, response, "uptime_seconds")
	assert.Equal(t, 1.0, response["plans_generated"])
}

func TestWebSocketPlanStream(t *testing.T) {
	env := newTestEnv(t, false)
	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() map[string]interface{} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg map[string]interface{}
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	require.NoError(t, conn.WriteJSON(gin.H{
		"type":       MessagePredict,
		"menu_items": []models.MenuItem{{Name: "Dosa", Price: 90, Stock: 4}},
	}))
	msg := read()
	assert.Equal(t, MessagePlan, msg["type"])
	assert.Equal(t, true, msg["success"])
	plan := msg["production_plan"].(map[string]interface{})
	assert.Len(t, plan["predictions"], 1)

	require.NoError(t, conn.WriteJSON(gin.H{"type": "subscribe"}))
	msg = read()
	assert.Equal(t, MessageError, msg["type"])
	assert.Contains(t, msg["error"], "unsupported message type")
	assert.Equal(t, 1, env.service.Monitor().GetMetrics()["websocket_sessions"])
}
