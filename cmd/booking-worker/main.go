package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/telemetry"
	bookingworker "github.com/wolfman30/clinic-scheduler/internal/worker/booking"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(ctx, "clinic-booking-worker", cfg.OTelEndpoint, cfg.OTelInsecure, logger)
	defer func() { _ = shutdownTracing(context.Background()) }()

	if err := bookingworker.Run(ctx, cfg, logger); err != nil {
		logger.Error("booking worker exited", "error", err)
		os.Exit(1)
	}
}
