package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-scheduler/internal/api/router"
	appbootstrap "github.com/wolfman30/clinic-scheduler/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/events"
	"github.com/wolfman30/clinic-scheduler/internal/http/handlers"
	"github.com/wolfman30/clinic-scheduler/internal/matching"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/internal/reservation"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
	"github.com/wolfman30/clinic-scheduler/internal/telemetry"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-scheduler API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"queue_backend", cfg.QueueBackend,
		"reservation_backend", cfg.ReservationBackend,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := telemetry.Setup(ctx, "clinic-api", cfg.OTelEndpoint, cfg.OTelInsecure, logger)
	defer func() { _ = shutdownTracing(context.Background()) }()

	metricsHandler, pipelineMetrics := setupMetrics()

	store, err := appbootstrap.BuildScheduleStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build schedule store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var redisClient *redis.Client
	if cfg.ReservationBackend != appconfig.ReservationBackendMemory {
		redisClient = appbootstrap.BuildRedisClient(ctx, cfg, logger, true)
		if redisClient != nil {
			defer redisClient.Close()
		}
	}
	cache, err := appbootstrap.BuildReservationCache(ctx, cfg, redisClient, logger)
	if err != nil {
		logger.Error("failed to build reservation cache", "error", err)
		os.Exit(1)
	}

	queues, err := appbootstrap.BuildQueues(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build queues", "error", err)
		os.Exit(1)
	}
	defer func() { _ = queues.Close() }()

	pipeline := setupInlinePipeline(ctx, cfg, store, cache, queues, pipelineMetrics, logger)

	finder := matching.NewFinder(store, logger, matching.WithSlotInterval(cfg.SlotInterval))
	publisher := events.NewPublisher(queues.Senders(), logger)
	r := router.New(&router.Config{
		Logger:          logger,
		Appointments:    handlers.NewAppointmentsHandler(finder, publisher, cache, pipelineMetrics, logger),
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  metricsHandler,
		Ready:           readiness(redisClient),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	cancel()
	waitForInlinePipeline(pipeline, logger)
	logger.Info("server stopped")
}

// setupMetrics registers pipeline metrics on a private registry.
func setupMetrics() (http.Handler, *metrics.PipelineMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewPipelineMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

// setupInlinePipeline runs both consumers in-process when queues are in memory,
// since no separate worker can reach them.
func setupInlinePipeline(ctx context.Context, cfg *appconfig.Config, store schedule.Store, cache reservation.Cache, queues *appbootstrap.Queues, m *metrics.PipelineMetrics, logger *logging.Logger) *appbootstrap.Pipeline {
	if cfg.QueueBackend != appconfig.QueueBackendMemory {
		return nil
	}
	pipeline, err := appbootstrap.BuildPipeline(cfg, store, cache, queues, m, logger)
	if err != nil {
		logger.Error("failed to build inline pipeline", "error", err)
		return nil
	}
	pipeline.Start(ctx)
	logger.Info("inline booking consumers started", "workers", cfg.ConsumerWorkerCount)
	return pipeline
}

func waitForInlinePipeline(pipeline *appbootstrap.Pipeline, logger *logging.Logger) {
	if pipeline == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		pipeline.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("inline booking consumers stopped")
	case <-time.After(10 * time.Second):
		logger.Warn("timed out waiting for inline booking consumers")
	}
}

func readiness(redisClient *redis.Client) func(ctx context.Context) error {
	if redisClient == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}
}
