package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/pedidos-console/internal/config"
)

// OpenStore builds the KeyValueStore selected by SESSION_STORE. The returned
// release func closes whatever connection the store opened.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (KeyValueStore, func(), error) {
	var (
		store   KeyValueStore
		release = func() {}
	)

	switch cfg.Session.Store {
	case "memory":
		store = NewMemoryStore()
	case "file":
		fs, err := NewFileStore(cfg.Session.FilePath)
		if err != nil {
			return nil, nil, err
		}
		store = fs
	case "redis":
		r := NewRedis(cfg.Redis, logger)
		store = NewRedisStore(r.Client, cfg.Session.KeyPrefix)
		release = r.Close
	case "postgres":
		pg, err := NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				return nil, nil, err
			}
		}
		store = NewPostgresStore(pg.PoolHandle(), cfg.Session.KeyPrefix)
		release = pg.Close
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}

	if cfg.Session.SealKey != "" {
		sealed, err := NewSealedStore(store, cfg.Session.SealKey)
		if err != nil {
			release()
			return nil, nil, err
		}
		store = sealed
	}

	logger.Info("session store ready",
		zap.String("backend", cfg.Session.Store),
		zap.Bool("sealed", cfg.Session.SealKey != ""))
	return store, release, nil
}
