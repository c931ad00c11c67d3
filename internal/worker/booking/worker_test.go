package bookingworker

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

func TestRunRequiresConfig(t *testing.T) {
	err := Run(context.Background(), nil, logging.New("error"))
	require.Error(t, err)
}

func TestRunRejectsMemoryQueue(t *testing.T) {
	cfg := &appconfig.Config{QueueBackend: appconfig.QueueBackendMemory}
	err := Run(context.Background(), cfg, logging.New("error"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUEUE_BACKEND=memory")
}

func TestRunFailsWithoutQueueURLs(t *testing.T) {
	cfg := &appconfig.Config{
		QueueBackend:       appconfig.QueueBackendSQS,
		ReservationBackend: appconfig.ReservationBackendMemory,
	}
	err := Run(context.Background(), cfg, logging.New("error"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to configure queues")
}

func TestServeMetricsDisabledWithoutAddr(t *testing.T) {
	stop := serveMetrics("", http.NotFoundHandler(), logging.New("error"))
	require.NotNil(t, stop)
	stop()
}

func TestServeMetrics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "clinic_booking_messages_total 1\n")
	})
	stop := serveMetrics(addr, handler, logging.New("error"))
	defer stop()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		body = string(raw)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	assert.Contains(t, body, "clinic_booking_messages_total")
}
