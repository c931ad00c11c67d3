package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueSendReceiveDelete(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, `{"a":1}`))
	require.NoError(t, q.Send(ctx, `{"a":2}`))
	assert.Equal(t, 2, q.Len())

	msgs, err := q.Receive(ctx, 10, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, `{"a":1}`, msgs[0].Body)
	assert.Equal(t, 2, q.InFlight())

	require.NoError(t, q.Delete(ctx, msgs[0].ReceiptHandle))
	assert.Equal(t, 1, q.InFlight())
}

func TestMemoryQueueReceiveTimeout(t *testing.T) {
	q := NewMemoryQueue(1)
	start := time.Now()
	msgs, err := q.Receive(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestMemoryQueueReceiveCancelled(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Receive(ctx, 1, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryQueueReject(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()
	require.NoError(t, q.Send(ctx, "not json"))

	msgs, err := q.Receive(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var client Client = q
	rejecter, ok := client.(Rejecter)
	require.True(t, ok)
	require.NoError(t, rejecter.Reject(ctx, msgs[0].ReceiptHandle))

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "not json", dead[0].Body)
	assert.Zero(t, q.InFlight())
}
