package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

// RecurringSeries mirrors the recurring_series table (§3/§4.1).
type RecurringSeries struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	CreatedAt time.Time
}

// RecurringSeriesRepository reads and writes recurring_series. The
// per-owner series limit (HX501) is enforced by a database trigger; this
// repository only propagates whatever it raises.
type RecurringSeriesRepository struct{}

func NewRecurringSeriesRepository() *RecurringSeriesRepository { return &RecurringSeriesRepository{} }

// Create inserts a new series row for an owner. Returns a wrapped HX501
// DomainError if the owner is already at the configured limit.
func (r *RecurringSeriesRepository) Create(ctx context.Context, ex txrunner.Executor, ownerID uuid.UUID) (*RecurringSeries, error) {
	row := ex.QueryRowContext(ctx, `
		INSERT INTO recurring_series (owner_id) VALUES ($1)
		RETURNING id, owner_id, created_at`, ownerID)
	var s RecurringSeries
	if err := row.Scan(&s.ID, &s.OwnerID, &s.CreatedAt); err != nil {
		return nil, wrapDBError("recurring_series.Create", err)
	}
	return &s, nil
}

// Get fetches a series by id.
func (r *RecurringSeriesRepository) Get(ctx context.Context, ex txrunner.Executor, id uuid.UUID) (*RecurringSeries, error) {
	row := ex.QueryRowContext(ctx, `SELECT id, owner_id, created_at FROM recurring_series WHERE id = $1`, id)
	var s RecurringSeries
	err := row.Scan(&s.ID, &s.OwnerID, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewNotFoundError("recurring_series", id)
	}
	if err != nil {
		return nil, wrapDBError("recurring_series.Get", err)
	}
	return &s, nil
}

// CountForOwner returns how many series an owner currently has, letting the
// engine give a friendlier pre-flight error than waiting on HX501.
func (r *RecurringSeriesRepository) CountForOwner(ctx context.Context, ex txrunner.Executor, ownerID uuid.UUID) (int, error) {
	var n int
	err := ex.QueryRowContext(ctx, `SELECT count(*) FROM recurring_series WHERE owner_id = $1`, ownerID).Scan(&n)
	if err != nil {
		return 0, wrapDBError("recurring_series.CountForOwner", err)
	}
	return n, nil
}
