package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Domenick1991/ftms/config"
	"github.com/Domenick1991/ftms/internal/repository"
	"github.com/Domenick1991/ftms/internal/repository/memory"
	"github.com/Domenick1991/ftms/internal/repository/sqlitestore"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OpenStore connects the configured backend. The returned func releases it.
func OpenStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (repository.Opener, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repository.NewPGOpener(pool), pool.Close, nil

	case config.DriverSQLite:
		store, err := sqlitestore.Open(sqlitestore.Config{
			Path:     cfg.Storage.SQLitePath,
			PoolSize: cfg.Storage.SQLitePoolSize,
			Logger:   log.With("component", "sqlite"),
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn("close sqlite store", "error", err)
			}
		}, nil

	case config.DriverMemory:
		log.Warn("using in-memory store; data is lost on exit")
		return memory.New(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
