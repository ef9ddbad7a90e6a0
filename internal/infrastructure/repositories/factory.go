package repositories

import (
	"context"
	"fmt"

	"streamgate/internal/core/ports"
	"streamgate/internal/infrastructure/repositories/memory"
	pgrepo "streamgate/internal/infrastructure/repositories/postgres"
	redisrepo "streamgate/internal/infrastructure/repositories/redis"
	"streamgate/pkg/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory opens the configured storage backend and the shared
// Redis client used for locks and events.
type RepositoryFactory struct {
	backend     string
	keyPrefix   string
	redisClient *redis.Client
	pgPool      *pgxpool.Pool
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory connects to Redis when enabled and to Postgres when
// it is the storage backend. Unlike the optional Redis features, a failed
// connection to the selected storage backend is fatal.
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		backend:   cfg.Storage.Backend,
		keyPrefix: cfg.Redis.KeyPrefix,
		logger:    logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			cfg.Redis.KeyPrefix,
			logger,
		)
		if err != nil {
			return nil, err
		}
		factory.redisClient = client
	}

	if cfg.Storage.Backend == config.StoragePostgres {
		pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, logger)
		if err != nil {
			factory.Close()
			return nil, err
		}
		if cfg.Postgres.Migrate {
			if err := pgrepo.Migrate(ctx, pool); err != nil {
				pool.Close()
				factory.Close()
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
		}
		factory.pgPool = pool
	}

	logger.Infow("storage configured", "backend", factory.backend, "redis", factory.redisClient != nil)
	return factory, nil
}

// CreateStreamRepository returns the repository for the configured backend
func (f *RepositoryFactory) CreateStreamRepository() ports.StreamRepository {
	switch {
	case f.backend == config.StoragePostgres && f.pgPool != nil:
		return pgrepo.NewStreamRepository(f.pgPool)
	case f.backend == config.StorageRedis && f.redisClient != nil:
		return redisrepo.NewRedisStreamRepository(f.redisClient, f.keyPrefix)
	default:
		return memory.NewMemoryStreamRepository()
	}
}

// RedisClient returns the shared client, or nil when Redis is disabled.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

// Close closes open connections
func (f *RepositoryFactory) Close() error {
	if f.pgPool != nil {
		f.pgPool.Close()
	}
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		if err := f.redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if f.pgPool != nil {
		if err := f.pgPool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	return nil
}
