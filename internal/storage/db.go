// Package storage provides persistent storage for parsed loads: a
// PostgreSQL store for loads and dispatchers, a ClickHouse parse audit
// trail, and a local SQLite history for the CLI.
package storage

import (
	"context"
	"fmt"
)

// Config holds database connection settings for both PostgreSQL and
// ClickHouse.
type Config struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
}

// DefaultConfig returns a configuration with default local development
// settings.
func DefaultConfig() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "loads",
			User:     "loads",
			Password: "loads",
		},
		ClickHouse: ClickHouseConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "loads",
			User:     "default",
			Password: "",
		},
	}
}

// DB wraps both connections: PostgreSQL for loads and dispatchers,
// ClickHouse for the append-only parse audit trail.
type DB struct {
	PG *PostgresDB
	CH *ClickHouseDB
}

// Open opens connections to both PostgreSQL and ClickHouse.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	pg, err := OpenPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	ch, err := OpenClickHouse(ctx, cfg.ClickHouse)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("clickhouse: %w", err)
	}

	return &DB{PG: pg, CH: ch}, nil
}

// Close closes both database connections.
func (d *DB) Close() error {
	var firstErr error
	if d.CH != nil {
		if err := d.CH.Close(); err != nil {
			firstErr = fmt.Errorf("clickhouse: %w", err)
		}
	}
	if d.PG != nil {
		d.PG.Close()
	}
	return firstErr
}

// CreateSchemas creates the schemas in both databases.
func (d *DB) CreateSchemas(ctx context.Context) error {
	if err := d.PG.CreateSchema(ctx); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	if err := d.CH.CreateSchema(ctx); err != nil {
		return fmt.Errorf("clickhouse schema: %w", err)
	}
	return nil
}
