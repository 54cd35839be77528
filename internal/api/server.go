// Package api exposes forecasting and production planning over HTTP and
// websockets.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kitchenplan/internal/forecast"
	"kitchenplan/internal/models"
	"kitchenplan/internal/repository"
)

// ServiceName is reported by the health endpoint
const ServiceName = "ML Demand Forecasting"

// SalesStore stores and lists sales history
type SalesStore interface {
	Insert(ctx context.Context, records []models.SalesRecord) (int, error)
	List(ctx context.Context, filter repository.SalesFilter) ([]models.SalesRecord, error)
}

// PlanLister lists archived production plans
type PlanLister interface {
	Recent(ctx context.Context, limit int) ([]repository.ArchivedPlan, error)
}

// Server handles forecasting requests
type Server struct {
	router  *gin.Engine
	service *forecast.Service
	sales   SalesStore
	plans   PlanLister
	logger  *zap.Logger
}

// NewServer creates a server. sales and plans may be nil, in which case the
// endpoints that need them answer 503.
func NewServer(service *forecast.Service, sales SalesStore, plans PlanLister, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	s := &Server{
		router:  router,
		service: service,
		sales:   sales,
		plans:   plans,
		logger:  logger,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/predict", s.handlePredict)
	s.router.POST("/train", s.handleTrain)
	s.router.POST("/predict/dish/:name", s.handlePredictDish)
	s.router.GET("/ws", s.handleWebSocket)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/sales", s.handleIngestSales)
		v1.GET("/plans", s.handleListPlans)
		v1.GET("/monitor", s.handleMonitor)
	}
}

// Router returns the Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

// RequestLogger logs every request once it has been served
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(started)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
			return
		}
		logger.Debug("request served", fields...)
	}
}
