// Package txrunner provides the transaction-boundary primitive shared by
// every engine, ported from the teacher's RepositoryManager.WithTransaction:
// BEGIN, call fn with a bound executor, COMMIT on success, ROLLBACK wrapped
// in its own error handling on failure so a rollback error never masks the
// original one, connection always released.
package txrunner

import (
	"context"
	"database/sql"
	"fmt"
)

// Executor is satisfied by both *sql.DB and *sql.Tx, letting repositories
// accept either a pooled connection or a transaction without branching.
type Executor interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Runner wraps a *sql.DB and exposes the transaction helpers every engine
// constructs on top of.
type Runner struct {
	db *sql.DB
}

// New wraps an open *sql.DB.
func New(db *sql.DB) *Runner { return &Runner{db: db} }

// DB returns the underlying pooled connection for read-only, non-transactional
// queries (repositories accept an Executor so this also satisfies that
// interface directly).
func (r *Runner) DB() *sql.DB { return r.db }

// WithTransaction runs fn inside a default-isolation transaction. fn's
// returned error always wins: a rollback failure is logged into the
// returned error's context but never replaces it.
func (r *Runner) WithTransaction(ctx context.Context, fn func(ctx context.Context, ex Executor) error) error {
	return r.withTx(ctx, nil, fn)
}

// WithSerializableTransaction runs fn inside a SERIALIZABLE transaction, used
// by the XP award path (§4.8) where a consistent read of the user/task
// snapshot must not race another award for the same user.
func (r *Runner) WithSerializableTransaction(ctx context.Context, fn func(ctx context.Context, ex Executor) error) error {
	return r.withTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, fn)
}

func (r *Runner) withTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, ex Executor) error) (err error) {
	tx, beginErr := r.db.BeginTx(ctx, opts)
	if beginErr != nil {
		return fmt.Errorf("txrunner: begin: %w", beginErr)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if fnErr := fn(ctx, tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			// The original error always propagates; the rollback failure is
			// folded in as context rather than replacing it.
			err = fmt.Errorf("%w (rollback also failed: %v)", fnErr, rbErr)
			return
		}
		err = fnErr
		return
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("txrunner: commit: %w", commitErr)
	}
	return nil
}
