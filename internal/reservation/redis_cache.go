package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const redisKeyPrefix = "reservation:"

// RedisCache keeps reservations in Redis so every consumer instance sees the
// same holds. Expiry is native (SET EX) and Take relies on GETDEL.
type RedisCache struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// NewRedisCache wraps a Redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	if client == nil {
		panic("reservation: redis client required")
	}
	return &RedisCache{
		redis:  client,
		tracer: otel.Tracer("clinic.internal.reservation"),
	}
}

func (c *RedisCache) Put(ctx context.Context, key string, r Reservation, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	ctx, span := c.tracer.Start(ctx, "reservation.put")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.complaint_id", key))

	if r.ExpiresAt.IsZero() {
		r.ExpiresAt = time.Now().Add(ttl).UTC()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("reservation: marshal: %w", err)
	}
	if err := c.redis.Set(ctx, redisKey(key), data, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("reservation: put: %w", err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (Reservation, error) {
	ctx, span := c.tracer.Start(ctx, "reservation.get")
	defer span.End()

	data, err := c.redis.Get(ctx, redisKey(key)).Bytes()
	return c.decode(span, data, err, "get")
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	ctx, span := c.tracer.Start(ctx, "reservation.delete")
	defer span.End()

	if err := c.redis.Del(ctx, redisKey(key)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("reservation: delete: %w", err)
	}
	return nil
}

func (c *RedisCache) Take(ctx context.Context, key string) (Reservation, error) {
	ctx, span := c.tracer.Start(ctx, "reservation.take")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.complaint_id", key))

	data, err := c.redis.GetDel(ctx, redisKey(key)).Bytes()
	return c.decode(span, data, err, "take")
}

func (c *RedisCache) decode(span trace.Span, data []byte, err error, op string) (Reservation, error) {
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Reservation{}, ErrNotFound
		}
		span.RecordError(err)
		return Reservation{}, fmt.Errorf("reservation: %s: %w", op, err)
	}
	var r Reservation
	if err := json.Unmarshal(data, &r); err != nil {
		return Reservation{}, fmt.Errorf("reservation: decode %s: %w", op, err)
	}
	return r, nil
}

func redisKey(key string) string {
	return redisKeyPrefix + key
}
