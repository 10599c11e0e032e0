package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a pgxpool.Pool and implements Store on the kv_store table.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new DB with a connection pool.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// Get implements KV.
func (db *DB) Get(ctx context.Context, owner, key string) ([]byte, bool, error) {
	var value []byte
	err := db.Pool.QueryRow(ctx,
		`SELECT value FROM kv_store WHERE owner = $1 AND key = $2`,
		owner, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s/%s: %w", owner, key, err)
	}
	return value, true, nil
}

// Put implements KV.
func (db *DB) Put(ctx context.Context, owner, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO kv_store (owner, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (owner, key) DO UPDATE
			SET value = EXCLUDED.value, updated_at = NOW()
	`, owner, key, value)
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", owner, key, err)
	}
	return nil
}

// Ping implements Store.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Close closes the connection pool.
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

// RunMigrations applies all pending migrations from the given directory.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
