package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appbootstrap "github.com/wolfman30/clinic-scheduler/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/reservation"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

func TestSetupMetricsExposesPipelineMetrics(t *testing.T) {
	handler, m := setupMetrics()
	require.NotNil(t, handler)
	require.NotNil(t, m)

	m.ObserveMessage("match", "handled")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "clinic_booking_messages_total")
}

func TestSetupInlinePipelineDisabledForBrokers(t *testing.T) {
	cfg := &appconfig.Config{QueueBackend: appconfig.QueueBackendSQS}
	pipeline := setupInlinePipeline(context.Background(), cfg, nil, nil, nil, nil, logging.New("error"))
	assert.Nil(t, pipeline)
}

func TestSetupInlinePipelineStartsAndStops(t *testing.T) {
	logger := logging.New("error")
	cfg := &appconfig.Config{
		QueueBackend:           appconfig.QueueBackendMemory,
		ReservationTTL:         time.Minute,
		SearchHorizonDays:      30,
		SlotInterval:           30 * time.Minute,
		ConsumerWorkerCount:    1,
		ConsumerMaxAttempts:    1,
		ConsumerRetryBaseDelay: time.Millisecond,
		ReceiveWaitSeconds:     1,
	}
	queues, err := appbootstrap.BuildQueues(context.Background(), cfg, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	pipeline := setupInlinePipeline(ctx, cfg, schedule.NewMemoryStore(), reservation.NewMemoryCache(), queues, nil, logger)
	require.NotNil(t, pipeline)

	cancel()
	waitForInlinePipeline(pipeline, logger)
}

func TestReadiness(t *testing.T) {
	assert.Nil(t, readiness(nil))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ready := readiness(client)
	require.NotNil(t, ready)
	assert.NoError(t, ready(context.Background()))

	mr.Close()
	assert.Error(t, ready(context.Background()))
}
