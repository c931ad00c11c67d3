package reservation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, NewRedisCache(client)
}

func sampleReservation(id string) Reservation {
	return Reservation{
		ComplaintID: id,
		DoctorID:    1,
		DoctorName:  "D1 Name",
		Date:        "2024-06-03",
		Time:        "09:00",
	}
}

func TestRedisCacheRoundTrip(t *testing.T) {
	mr, cache := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "c-1", sampleReservation("c-1"), 5*time.Minute))
	assert.True(t, mr.Exists("reservation:c-1"))
	assert.Equal(t, 5*time.Minute, mr.TTL("reservation:c-1"))

	got, err := cache.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "D1 Name", got.DoctorName)
	assert.Equal(t, "09:00", got.Time)
	assert.False(t, got.ExpiresAt.IsZero())

	// get does not consume
	_, err = cache.Get(ctx, "c-1")
	require.NoError(t, err)

	require.NoError(t, cache.Delete(ctx, "c-1"))
	_, err = cache.Get(ctx, "c-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, cache.Delete(ctx, "c-1"), "delete of a missing key is not an error")
}

func TestRedisCacheExpires(t *testing.T) {
	mr, cache := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "c-2", sampleReservation("c-2"), 5*time.Minute))
	mr.FastForward(5*time.Minute + time.Second)

	_, err := cache.Get(ctx, "c-2")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = cache.Take(ctx, "c-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisCachePutOverwrites(t *testing.T) {
	_, cache := setupTestRedis(t)
	ctx := context.Background()

	first := sampleReservation("c-3")
	second := sampleReservation("c-3")
	second.Time = "10:30"
	require.NoError(t, cache.Put(ctx, "c-3", first, time.Minute))
	require.NoError(t, cache.Put(ctx, "c-3", second, time.Minute))

	got, err := cache.Get(ctx, "c-3")
	require.NoError(t, err)
	assert.Equal(t, "10:30", got.Time)
}

func TestRedisCacheRejectsMissingTTL(t *testing.T) {
	_, cache := setupTestRedis(t)
	err := cache.Put(context.Background(), "c-4", sampleReservation("c-4"), 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestRedisCacheTakeIsSingleClaim(t *testing.T) {
	_, cache := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, cache.Put(ctx, "c-5", sampleReservation("c-5"), time.Minute))

	var (
		wg      sync.WaitGroup
		claims  atomic.Int32
		misses  atomic.Int32
		workers = 8
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Take(ctx, "c-5")
			if err == nil {
				claims.Add(1)
				return
			}
			if assert.ErrorIs(t, err, ErrNotFound) {
				misses.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), claims.Load())
	assert.Equal(t, int32(workers-1), misses.Load())
}

func TestRedisCacheUnavailable(t *testing.T) {
	mr, cache := setupTestRedis(t)
	mr.Close()

	_, err := cache.Get(context.Background(), "c-6")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
