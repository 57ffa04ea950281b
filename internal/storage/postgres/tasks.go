package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/hustlexp/hustlexp-core/internal/domain"
	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

// TaskRepository reads and writes the tasks table.
type TaskRepository struct{}

func NewTaskRepository() *TaskRepository { return &TaskRepository{} }

const taskColumns = `id, owner_id, worker_id, title, description, price_cents, location, category,
	requires_proof, risk_tier, mode, instant_mode, sensitive, lifecycle_state, progress_state,
	recurring_series_id, accepted_at, proof_submitted_at, completed_at, cancelled_at, expired_at,
	disputed_at, version, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*Task, error) {
	var t Task
	err := row.Scan(
		&t.ID, &t.OwnerID, &t.WorkerID, &t.Title, &t.Description, &t.PriceCents, &t.Location, &t.Category,
		&t.RequiresProof, &t.RiskTier, &t.Mode, &t.InstantMode, &t.Sensitive, &t.LifecycleState, &t.ProgressState,
		&t.RecurringSeriesID, &t.AcceptedAt, &t.ProofSubmittedAt, &t.CompletedAt, &t.CancelledAt, &t.ExpiredAt,
		&t.DisputedAt, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateParams groups task-creation inputs.
type CreateParams struct {
	OwnerID           uuid.UUID
	Title             string
	Description       string
	PriceCents        int64
	Location          string
	Category          string
	RequiresProof     bool
	RiskTier          domain.RiskTier
	Mode              domain.TaskMode
	InstantMode       bool
	Sensitive         bool
	LifecycleState    domain.TaskLifecycleState
	RecurringSeriesID *uuid.UUID
}

// Create inserts a new task row.
func (r *TaskRepository) Create(ctx context.Context, ex txrunner.Executor, p CreateParams) (*Task, error) {
	row := ex.QueryRowContext(ctx, `
		INSERT INTO tasks (owner_id, title, description, price_cents, location, category, requires_proof,
			risk_tier, mode, instant_mode, sensitive, lifecycle_state, recurring_series_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+taskColumns,
		p.OwnerID, p.Title, p.Description, p.PriceCents, p.Location, p.Category, p.RequiresProof,
		p.RiskTier, p.Mode, p.InstantMode, p.Sensitive, p.LifecycleState, p.RecurringSeriesID)
	t, err := scanTask(row)
	if err != nil {
		return nil, wrapDBError("tasks.Create", err)
	}
	return t, nil
}

// Get fetches a task by id.
func (r *TaskRepository) Get(ctx context.Context, ex txrunner.Executor, id uuid.UUID) (*Task, error) {
	row := ex.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewNotFoundError("task", id)
	}
	if err != nil {
		return nil, wrapDBError("tasks.Get", err)
	}
	return t, nil
}

// GetForUpdate fetches a task with a row lock, for advanceProgress/dispute
// flows that need a consistent read-then-write within one transaction.
func (r *TaskRepository) GetForUpdate(ctx context.Context, ex txrunner.Executor, id uuid.UUID) (*Task, error) {
	row := ex.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewNotFoundError("task", id)
	}
	if err != nil {
		return nil, wrapDBError("tasks.GetForUpdate", err)
	}
	return t, nil
}

// Accept performs the race-resolving atomic accept (§4.4): a single
// conditional UPDATE scoped to OPEN/MATCHING with no worker assigned yet.
// A nil result (no rows, no error) means the caller lost the race.
func (r *TaskRepository) Accept(ctx context.Context, ex txrunner.Executor, id, workerID uuid.UUID) (*Task, error) {
	row := ex.QueryRowContext(ctx, `
		UPDATE tasks SET worker_id = $1, lifecycle_state = 'ACCEPTED', progress_state = 'ACCEPTED',
			accepted_at = now(), version = version + 1, updated_at = now()
		WHERE id = $2 AND lifecycle_state IN ('OPEN', 'MATCHING') AND worker_id IS NULL
		RETURNING `+taskColumns, workerID, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("tasks.Accept", err)
	}
	return t, nil
}

// TransitionLifecycle performs a single conditional UPDATE moving the task's
// lifecycle_state from expectedFrom to to, guarded by version. A nil result
// means the precondition no longer holds (lost race, stale caller).
func (r *TaskRepository) TransitionLifecycle(ctx context.Context, ex txrunner.Executor, id uuid.UUID, expectedFrom, to domain.TaskLifecycleState, expectedVersion int, timestampColumn string) (*Task, error) {
	query := `
		UPDATE tasks SET lifecycle_state = $1, version = version + 1, updated_at = now()`
	if timestampColumn != "" {
		query += `, ` + timestampColumn + ` = now()`
	}
	query += `
		WHERE id = $2 AND lifecycle_state = $3 AND version = $4
		RETURNING ` + taskColumns

	row := ex.QueryRowContext(ctx, query, to, id, expectedFrom, expectedVersion)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("tasks.TransitionLifecycle", err)
	}
	return t, nil
}

// TransitionProgress performs the progress-axis UPDATE independent of
// lifecycle_state, used by advanceProgress (§4.4) after its in-memory legality
// checks (idempotent no-op, actor authority, dispute/escrow freeze) pass.
func (r *TaskRepository) TransitionProgress(ctx context.Context, ex txrunner.Executor, id uuid.UUID, to domain.TaskProgressState, expectedVersion int) (*Task, error) {
	row := ex.QueryRowContext(ctx, `
		UPDATE tasks SET progress_state = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
		RETURNING `+taskColumns, to, id, expectedVersion)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("tasks.TransitionProgress", err)
	}
	return t, nil
}

// RejectProofReturnToAccepted moves the task back to ACCEPTED after a proof
// is rejected, clearing proof_submitted_at's significance without erasing it.
func (r *TaskRepository) RejectProofReturnToAccepted(ctx context.Context, ex txrunner.Executor, id uuid.UUID, expectedVersion int) (*Task, error) {
	row := ex.QueryRowContext(ctx, `
		UPDATE tasks SET lifecycle_state = 'ACCEPTED', version = version + 1, updated_at = now()
		WHERE id = $1 AND lifecycle_state = 'PROOF_SUBMITTED' AND version = $2
		RETURNING `+taskColumns, id, expectedVersion)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("tasks.RejectProofReturnToAccepted", err)
	}
	return t, nil
}

// ListActiveForOwner returns an owner's non-terminal tasks, used by
// banUser to cancel a banned user's active tasks (§4.6).
func (r *TaskRepository) ListActiveForOwner(ctx context.Context, ex txrunner.Executor, ownerID uuid.UUID) ([]*Task, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE owner_id = $1 AND lifecycle_state NOT IN ('COMPLETED', 'CANCELLED', 'EXPIRED')
		FOR UPDATE`, ownerID)
	if err != nil {
		return nil, wrapDBError("tasks.ListActiveForOwner", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, wrapDBError("tasks.ListActiveForOwner", err)
		}
		out = append(out, t)
	}
	return out, wrapDBErrorIfAny("tasks.ListActiveForOwner", rows.Err())
}

// CountCompletedForWorker counts a worker's COMPLETED tasks, one of the
// schema-derivable promotion-threshold inputs (§4.6 TRUSTED/ELITE).
func (r *TaskRepository) CountCompletedForWorker(ctx context.Context, ex txrunner.Executor, workerID uuid.UUID) (int, error) {
	var n int
	err := ex.QueryRowContext(ctx,
		`SELECT count(*) FROM tasks WHERE worker_id = $1 AND lifecycle_state = 'COMPLETED'`, workerID,
	).Scan(&n)
	if err != nil {
		return 0, wrapDBError("tasks.CountCompletedForWorker", err)
	}
	return n, nil
}

// HasCompletedTier2PlusForWorker reports whether a worker has ever
// completed a TIER_2 or TIER_3 risk task, disqualifying them from TRUSTED
// promotion (§4.6).
func (r *TaskRepository) HasCompletedTier2PlusForWorker(ctx context.Context, ex txrunner.Executor, workerID uuid.UUID) (bool, error) {
	var exists bool
	err := ex.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM tasks
			WHERE worker_id = $1 AND lifecycle_state = 'COMPLETED' AND risk_tier IN ('TIER_2', 'TIER_3'))`,
		workerID,
	).Scan(&exists)
	if err != nil {
		return false, wrapDBError("tasks.HasCompletedTier2PlusForWorker", err)
	}
	return exists, nil
}

func wrapDBErrorIfAny(op string, err error) error {
	if err == nil {
		return nil
	}
	return wrapDBError(op, err)
}
