package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/claude/gymwhisper/internal/config"
)

// Open connects the store selected by cfg. Postgres is migrated from
// migrationsPath first; SQLite creates its table on open.
func Open(ctx context.Context, cfg config.StorageConfig, migrationsPath string, log *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		kv, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		log.Info("sqlite store opened", "path", cfg.Path)
		return kv, nil
	case "postgres":
		dsn := cfg.Postgres.DSN()
		if err := RunMigrations(dsn, migrationsPath); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		log.Info("migrations applied")
		db, err := New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		log.Info("database connected")
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
