// Package vectorindex opens the domain.VectorIndex selected in the configuration.
package vectorindex

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"semsearch/internal/config"
	"semsearch/internal/domain"
	"semsearch/internal/vectorindex/badger"
	"semsearch/internal/vectorindex/memory"
	"semsearch/internal/vectorindex/postgres"
	"semsearch/internal/vectorindex/qdrant"
	"semsearch/internal/vectorindex/redis"
	"semsearch/internal/vectorindex/sqlite"
)

// New opens the index named by cfg.Type.
func New(ctx context.Context, cfg config.VectorIndexConfig, logger *zap.Logger) (domain.VectorIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		idx domain.VectorIndex
		err error
	)
	switch cfg.Type {
	case "memory":
		idx = memory.NewStorage()
	case "", "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("vector_index.path is required for sqlite")
		}
		idx, err = sqlite.NewStorage(cfg.Path)
	case "badger":
		if cfg.Badger == nil {
			return nil, fmt.Errorf("badger config is not set")
		}
		idx, err = badger.Open(cfg.Badger.Dir, cfg.Badger.InMemory, logger)
	case "redis":
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis config is not set")
		}
		idx, err = redis.NewStorage(redis.Config{
			Addrs:     cfg.Redis.Addrs,
			Username:  cfg.Redis.Username,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config is not set")
		}
		idx = qdrant.NewStorage(qdrant.Config{
			URL:     cfg.Qdrant.URL,
			APIKey:  cfg.Qdrant.APIKey,
			Timeout: time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		})
	case "postgres":
		if cfg.Postgres == nil || cfg.Postgres.DSN == "" {
			return nil, fmt.Errorf("postgres dsn is not set")
		}
		idx, err = postgres.NewStorage(ctx, cfg.Postgres.DSN)
	default:
		return nil, fmt.Errorf("unknown vector index type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s index: %w", domain.ErrServiceUnavailable, cfg.Type, err)
	}
	logger.Info("vector index ready", zap.String("type", cfg.Type))
	return idx, nil
}
