// Package postgres is the Postgres-backed storage layer: connection setup,
// the migration-driven schema (internal/storage/postgres/migrations), and
// one repository per business entity or ledger in §3.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Postgres driver, registered via database/sql

	"github.com/hustlexp/hustlexp-core/internal/config"
	"github.com/hustlexp/hustlexp-core/internal/storage/postgres/migrations"
)

// Open opens a pooled Postgres connection per cfg, pings it, and runs any
// pending migrations before returning. It mirrors the teacher's
// PostgresDatabase.Open: build DSN, sql.Open, configure pool, ping with a
// bounded timeout, initialize schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return db, nil
}
