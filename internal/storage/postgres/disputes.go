package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/hustlexp/hustlexp-core/internal/domain"
	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

// DisputeRepository reads and writes the disputes table.
type DisputeRepository struct{}

func NewDisputeRepository() *DisputeRepository { return &DisputeRepository{} }

const disputeColumns = `id, task_id, escrow_id, initiated_by, poster_id, worker_id, reason, state, evidence,
	resolution_outcome, resolved_by, resolved_at, refund_amount_cents, release_amount_cents, version,
	created_at, updated_at`

func scanDispute(row interface{ Scan(...any) error }) (*Dispute, error) {
	var d Dispute
	err := row.Scan(
		&d.ID, &d.TaskID, &d.EscrowID, &d.InitiatedBy, &d.PosterID, &d.WorkerID, &d.Reason, &d.State, &d.Evidence,
		&d.ResolutionOutcome, &d.ResolvedBy, &d.ResolvedAt, &d.RefundAmountCents, &d.ReleaseAmountCents, &d.Version,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts an OPEN dispute row.
func (r *DisputeRepository) Create(ctx context.Context, ex txrunner.Executor, taskID, escrowID, initiatedBy, posterID, workerID uuid.UUID, reason string) (*Dispute, error) {
	row := ex.QueryRowContext(ctx, `
		INSERT INTO disputes (task_id, escrow_id, initiated_by, poster_id, worker_id, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+disputeColumns, taskID, escrowID, initiatedBy, posterID, workerID, reason)
	d, err := scanDispute(row)
	if err != nil {
		return nil, wrapDBError("disputes.Create", err)
	}
	return d, nil
}

// Get fetches a dispute by id.
func (r *DisputeRepository) Get(ctx context.Context, ex txrunner.Executor, id uuid.UUID) (*Dispute, error) {
	row := ex.QueryRowContext(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id)
	d, err := scanDispute(row)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewNotFoundError("dispute", id)
	}
	if err != nil {
		return nil, wrapDBError("disputes.Get", err)
	}
	return d, nil
}

// GetForUpdate fetches a dispute with a row lock.
func (r *DisputeRepository) GetForUpdate(ctx context.Context, ex txrunner.Executor, id uuid.UUID) (*Dispute, error) {
	row := ex.QueryRowContext(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1 FOR UPDATE`, id)
	d, err := scanDispute(row)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewNotFoundError("dispute", id)
	}
	if err != nil {
		return nil, wrapDBError("disputes.GetForUpdate", err)
	}
	return d, nil
}

// HasActiveForTask reports whether a task has a dispute that isn't RESOLVED,
// used by advanceProgress's dispute-freeze check (§4.4).
func (r *DisputeRepository) HasActiveForTask(ctx context.Context, ex txrunner.Executor, taskID uuid.UUID) (bool, error) {
	var exists bool
	err := ex.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM disputes WHERE task_id = $1 AND state != 'RESOLVED')`, taskID,
	).Scan(&exists)
	if err != nil {
		return false, wrapDBError("disputes.HasActiveForTask", err)
	}
	return exists, nil
}

// CountForWorker counts every dispute (any state) naming workerID, a
// schema-derivable promotion-threshold input (§4.6 TRUSTED requires "zero
// disputes").
func (r *DisputeRepository) CountForWorker(ctx context.Context, ex txrunner.Executor, workerID uuid.UUID) (int, error) {
	var n int
	err := ex.QueryRowContext(ctx, `SELECT count(*) FROM disputes WHERE worker_id = $1`, workerID).Scan(&n)
	if err != nil {
		return 0, wrapDBError("disputes.CountForWorker", err)
	}
	return n, nil
}

// AppendEvidence appends a response/evidence entry and transitions OPEN -> UNDER_REVIEW.
func (r *DisputeRepository) AppendEvidence(ctx context.Context, ex txrunner.Executor, id uuid.UUID, entry []byte, expectedVersion int) (*Dispute, error) {
	row := ex.QueryRowContext(ctx, `
		UPDATE disputes SET evidence = evidence || $1::jsonb, state = 'UNDER_REVIEW',
			version = version + 1, updated_at = now()
		WHERE id = $2 AND state = 'OPEN' AND version = $3
		RETURNING `+disputeColumns, entry, id, expectedVersion)
	d, err := scanDispute(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("disputes.AppendEvidence", err)
	}
	return d, nil
}

// Resolve transitions a dispute to RESOLVED with the given outcome and
// amounts (amounts are only meaningful for SPLIT; nil otherwise).
func (r *DisputeRepository) Resolve(ctx context.Context, ex txrunner.Executor, id, resolvedBy uuid.UUID, outcome domain.DisputeOutcome, refundAmt, releaseAmt *int64, expectedVersion int) (*Dispute, error) {
	row := ex.QueryRowContext(ctx, `
		UPDATE disputes SET state = 'RESOLVED', resolution_outcome = $1, resolved_by = $2, resolved_at = now(),
			refund_amount_cents = $3, release_amount_cents = $4, version = version + 1, updated_at = now()
		WHERE id = $5 AND state != 'RESOLVED' AND version = $6
		RETURNING `+disputeColumns, outcome, resolvedBy, refundAmt, releaseAmt, id, expectedVersion)
	d, err := scanDispute(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("disputes.Resolve", err)
	}
	return d, nil
}
