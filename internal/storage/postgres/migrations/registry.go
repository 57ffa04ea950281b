// Package migrations is an ordered registry of schema migrations, applied
// once each and tracked in a schema_versions table. Individual migrations
// register themselves from an init() function in their own file, following
// the pack's migrations.Register(Migration{...}) convention.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Migration is one forward-only schema change.
type Migration struct {
	Timestamp   string // sortable, e.g. "20250101-000000"
	Description string
	Up          []string // statements run in order, in a single transaction
}

var registry []Migration

// Register adds a migration to the package-level registry. Called from
// init() in each migration's own file.
func Register(m Migration) {
	registry = append(registry, m)
}

// All returns every registered migration sorted by timestamp.
func All() []Migration {
	out := make([]Migration, len(registry))
	copy(out, registry)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// Apply runs every migration not yet recorded in schema_versions, each in
// its own transaction, in timestamp order.
func Apply(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_versions (
			timestamp   TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("migrations: creating schema_versions: %w", err)
	}

	for _, m := range All() {
		var already bool
		if err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_versions WHERE timestamp = $1)`, m.Timestamp,
		).Scan(&already); err != nil {
			return fmt.Errorf("migrations: checking %s: %w", m.Timestamp, err)
		}
		if already {
			continue
		}

		if err := applyOne(ctx, db, m); err != nil {
			return fmt.Errorf("migrations: applying %s (%s): %w", m.Timestamp, m.Description, err)
		}
	}
	return nil
}

func applyOne(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.Up {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement failed: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_versions (timestamp, description) VALUES ($1, $2)`,
		m.Timestamp, m.Description,
	); err != nil {
		return err
	}

	return tx.Commit()
}
