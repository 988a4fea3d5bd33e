package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Fallenproud/create.xyzdashboard/internal/app/migrate"
	"github.com/Fallenproud/create.xyzdashboard/internal/storage"
	"github.com/Fallenproud/create.xyzdashboard/internal/storage/filestore"
	"github.com/Fallenproud/create.xyzdashboard/internal/storage/memory"
	"github.com/Fallenproud/create.xyzdashboard/internal/storage/postgres"
	"github.com/Fallenproud/create.xyzdashboard/internal/storage/redisstore"
	"github.com/Fallenproud/create.xyzdashboard/pkg/config"
)

// OpenStore opens the key-value backend selected by cfg.StoreDriver. The
// postgres backend has its schema migrated before use.
func OpenStore(ctx context.Context, cfg config.APIConfig, log *slog.Logger) (storage.Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	switch driver {
	case config.StoreMemory:
		return memory.New(), nil
	case "", config.StoreFile:
		if dir := filepath.Dir(cfg.StorePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store dir: %w", err)
			}
		}
		return filestore.Open(cfg.StorePath)
	case config.StoreRedis:
		return redisstore.Open(ctx, redisstore.Options{
			Addr:     cfg.StoreRedisAddr,
			Password: cfg.StoreRedisPass,
			DB:       cfg.StoreRedisDB,
		})
	case config.StorePostgres:
		return openPostgres(ctx, cfg, log)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func openPostgres(ctx context.Context, cfg config.APIConfig, log *slog.Logger) (storage.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	runner, err := migrate.New(pool, cfg.DatabaseURL, postgres.Migrations, postgres.MigrationsDir, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("configure migrations: %w", err)
	}
	if err := runner.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := runner.Ensure(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return postgres.New(pool), nil
}
