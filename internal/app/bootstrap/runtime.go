package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/reservation"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildReservationCache picks the hold store for RESERVATION_BACKEND. Redis is
// required for the redis backend; the memory cache only suits a single process.
func BuildReservationCache(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (reservation.Cache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.ReservationBackend {
	case appconfig.ReservationBackendMemory:
		cache := reservation.NewMemoryCache()
		cache.StartSweeper(ctx, cfg.ReservationTTL)
		logger.Warn("using in-memory reservation cache; holds are not shared across processes")
		return cache, nil
	case appconfig.ReservationBackendRedis, "":
		if redisClient == nil {
			return nil, fmt.Errorf("bootstrap: redis reservation backend requires REDIS_ADDR")
		}
		return reservation.NewRedisCache(redisClient), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown reservation backend %q", cfg.ReservationBackend)
	}
}

// ScheduleStore is the schedule repository plus a release hook.
type ScheduleStore struct {
	schedule.Store
	close func()
}

// Close releases the underlying pool, if any.
func (s *ScheduleStore) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}

// BuildScheduleStore connects to Postgres. Without DATABASE_URL an empty
// in-memory store is returned so the API can still boot for local smoke tests.
func BuildScheduleStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*ScheduleStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Warn("DATABASE_URL not set; using empty in-memory schedule store")
		return &ScheduleStore{Store: schedule.NewMemoryStore()}, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return &ScheduleStore{Store: schedule.NewPostgresStore(pool), close: pool.Close}, nil
}
