package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kitchenplan/internal/api"
	"kitchenplan/internal/monitoring"
	"kitchenplan/internal/storage"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the forecasting API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp(ctx, appOptions{withDatabase: true})
	if err != nil {
		return err
	}
	defer a.close()

	gin.SetMode(a.cfg.Server.Mode)

	if err := a.service.Load(ctx); err != nil {
		if errors.Is(err, storage.ErrArtifactNotFound) {
			a.logger.Warn("no trained model yet, train one with POST /train")
		} else {
			a.logger.Error("failed to load model, serving without one", zap.Error(err))
		}
	}

	server := api.NewServer(a.service, a.sales, a.plans, a.logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler: server.Router(),
	}
	metricsServer := newMetricsServer(a.cfg.Server.MetricsPort, a.metrics)

	go func() {
		a.logger.Info("starting metrics server", zap.Int("port", a.cfg.Server.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigChan:
		case <-ctx.Done():
		}

		a.logger.Info("shutting down servers")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("API server shutdown error", zap.Error(err))
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown error", zap.Error(err))
		}
		cancel()
	}()

	a.logger.Info("starting API server",
		zap.Int("port", a.cfg.Server.Port),
		zap.Bool("model_loaded", a.service.ModelLoaded()))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API server error: %w", err)
	}
	<-ctx.Done()
	return nil
}

func newMetricsServer(port int, mc *monitoring.MetricsCollector) *http.Server {
	metricsRouter := gin.New()
	metricsRouter.GET("/metrics", gin.WrapH(mc.Handler()))

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: metricsRouter,
	}
}
