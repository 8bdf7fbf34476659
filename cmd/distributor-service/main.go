// distributor-service is the HTTP API server that receives log packets
// and distributes them across the configured analyzer fleet.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"distributor/internal/api"
	"distributor/internal/config"
	"distributor/internal/engine"
	"distributor/internal/health"
	"distributor/internal/ingest"
	"distributor/internal/observability"
	"distributor/pkg/transport"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load configuration
	svcCfg := config.LoadServiceConfig()
	engineCfg := engine.LoadConfigFromEnv()
	monitorCfg := health.LoadMonitorConfigFromEnv()

	targets, err := config.LoadTargets()
	if err != nil {
		return err
	}

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	// Register targets in configuration order
	registry := engine.NewRegistry()
	for _, t := range targets {
		if err := registry.Register(t.Name, t.URL, t.Weight); err != nil {
			return err
		}
		slog.Info("Registered target", "target", t.Name, "url", t.URL, "weight", t.Weight)
	}

	// Create the dispatch engine
	client := transport.NewClient(engineCfg.SendTimeout)
	eng, err := engine.New(engineCfg, registry, client, metrics)
	if err != nil {
		return err
	}

	// Start the target health monitor
	monitor := health.NewMonitor(monitorCfg, registry, client, metrics)
	monitor.Start()

	// Create health checker and ingest service
	healthChecker := health.NewChecker(eng, registry)
	ingestService := ingest.NewService(eng)

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Ingest:        ingestService,
		Stats:         eng,
		Targets:       registry,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		APIKey:        svcCfg.APIKey,
	})

	if svcCfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API_KEY configured")
	}

	// Create API server
	apiServer := &http.Server{
		Addr:         ":" + svcCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Create metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + svcCfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Channel to capture server errors
	serverErr := make(chan error, 1)

	// Start API server
	go func() {
		slog.Info("Starting API server", "port", svcCfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Start metrics server
	go func() {
		slog.Info("Starting metrics server", "port", svcCfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// shutdown closes both servers gracefully
	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		shutdown(5 * time.Second)
		monitor.Stop()
		return err
	}

	// Phase 1: Mark service as unhealthy for load balancer draining
	healthChecker.SetShuttingDown()

	// Wait for load balancers to stop sending traffic
	if svcCfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", svcCfg.ShutdownDrainWait)
		time.Sleep(svcCfg.ShutdownDrainWait)
	}

	// Phase 2: Graceful shutdown - stop accepting new connections, finish in-flight requests
	slog.Info("Starting graceful shutdown")
	shutdown(25 * time.Second)

	// Phase 3: Stop probing and drain the dispatch engine
	monitor.Stop()

	slog.Info("Draining dispatch engine")
	engineCtx, engineCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer engineCancel()
	if err := eng.Close(engineCtx); err != nil {
		slog.Warn("Engine shutdown error", "error", err)
	}

	// Log final engine stats
	stats := eng.Stats()
	slog.Info("Engine stats",
		"received", stats.Received,
		"delivered", stats.Delivered,
		"rejected_overload", stats.RejectedOverload,
		"failed_exhausted", stats.FailedExhausted,
		"no_targets", stats.NoTargets,
		"retries_total", stats.RetriesTotal,
	)

	slog.Info("Shutdown complete")
	return nil
}
