package bookingworker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appbootstrap "github.com/wolfman30/clinic-scheduler/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

const metricsShutdownTimeout = 5 * time.Second

// Run starts the match and confirmation consumers and blocks until ctx is canceled.
func Run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	if cfg == nil {
		return fmt.Errorf("booking worker requires config")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.QueueBackend == appconfig.QueueBackendMemory {
		return fmt.Errorf("booking worker cannot run when QUEUE_BACKEND=memory; run inline consumers via the API process instead")
	}

	store, err := appbootstrap.BuildScheduleStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to configure schedule store: %w", err)
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
		return fmt.Errorf("failed to configure reservation cache: %w", err)
	}

	queues, err := appbootstrap.BuildQueues(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to configure queues: %w", err)
	}
	defer func() { _ = queues.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.NewPipelineMetrics(reg)

	pipeline, err := appbootstrap.BuildPipeline(cfg, store, cache, queues, m, logger)
	if err != nil {
		return fmt.Errorf("failed to configure pipeline: %w", err)
	}

	stopMetrics := serveMetrics(cfg.MetricsAddr, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), logger)
	defer stopMetrics()

	pipeline.Start(ctx)
	logger.Info("booking worker started",
		"queue_backend", cfg.QueueBackend,
		"reservation_backend", cfg.ReservationBackend,
		"workers", cfg.ConsumerWorkerCount,
	)

	<-ctx.Done()
	logger.Info("booking worker draining")
	pipeline.Wait()
	logger.Info("booking worker stopped")
	return nil
}

// serveMetrics exposes /metrics on addr. An empty addr disables it.
func serveMetrics(addr string, handler http.Handler, logger *logging.Logger) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
