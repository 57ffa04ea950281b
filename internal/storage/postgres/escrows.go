package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/hustlexp/hustlexp-core/internal/domain"
	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

// EscrowRepository reads and writes the escrows table. Every mutating
// method is a single conditional UPDATE carrying `WHERE state = :expected
// AND version = :expectedVersion` (§4.3); a nil, nil result means the
// caller lost the race or the precondition no longer holds.
type EscrowRepository struct{}

func NewEscrowRepository() *EscrowRepository { return &EscrowRepository{} }

const escrowColumns = `id, task_id, amount_cents, state, external_payment_intent_id, external_transfer_id,
	external_refund_id, refund_amount_cents, release_amount_cents, version, created_at, updated_at`

func scanEscrow(row interface{ Scan(...any) error }) (*Escrow, error) {
	var e Escrow
	err := row.Scan(
		&e.ID, &e.TaskID, &e.AmountCents, &e.State, &e.ExternalPaymentIntentID, &e.ExternalTransferID,
		&e.ExternalRefundID, &e.RefundAmountCents, &e.ReleaseAmountCents, &e.Version, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new PENDING escrow for a task. amount is immutable
// thereafter (HX004).
func (r *EscrowRepository) Create(ctx context.Context, ex txrunner.Executor, taskID uuid.UUID, amountCents int64) (*Escrow, error) {
	row := ex.QueryRowContext(ctx, `
		INSERT INTO escrows (task_id, amount_cents) VALUES ($1, $2)
		RETURNING `+escrowColumns, taskID, amountCents)
	e, err := scanEscrow(row)
	if err != nil {
		return nil, wrapDBError("escrows.Create", err)
	}
	return e, nil
}

// Get fetches an escrow by id.
func (r *EscrowRepository) Get(ctx context.Context, ex txrunner.Executor, id uuid.UUID) (*Escrow, error) {
	row := ex.QueryRowContext(ctx, `SELECT `+escrowColumns+` FROM escrows WHERE id = $1`, id)
	e, err := scanEscrow(row)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewNotFoundError("escrow", id)
	}
	if err != nil {
		return nil, wrapDBError("escrows.Get", err)
	}
	return e, nil
}

// GetByExternalIntentIDForUpdate finds the escrow carrying a given payment
// processor intent id, row-locked. Used by Payment Ingestion's
// charge.refunded fallback lookup when the refund event's metadata doesn't
// carry an escrow id directly (§4.5).
func (r *EscrowRepository) GetByExternalIntentIDForUpdate(ctx context.Context, ex txrunner.Executor, externalIntentID string) (*Escrow, error) {
	row := ex.QueryRowContext(ctx, `SELECT `+escrowColumns+` FROM escrows WHERE external_payment_intent_id = $1 FOR UPDATE`, externalIntentID)
	e, err := scanEscrow(row)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewNotFoundError("escrow for payment intent", externalIntentID)
	}
	if err != nil {
		return nil, wrapDBError("escrows.GetByExternalIntentIDForUpdate", err)
	}
	return e, nil
}

// GetForUpdate fetches an escrow by id, row-locked.
func (r *EscrowRepository) GetForUpdate(ctx context.Context, ex txrunner.Executor, id uuid.UUID) (*Escrow, error) {
	row := ex.QueryRowContext(ctx, `SELECT `+escrowColumns+` FROM escrows WHERE id = $1 FOR UPDATE`, id)
	e, err := scanEscrow(row)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewNotFoundError("escrow", id)
	}
	if err != nil {
		return nil, wrapDBError("escrows.GetForUpdate", err)
	}
	return e, nil
}

// GetByTaskForUpdate fetches the escrow owned by a task, row-locked.
func (r *EscrowRepository) GetByTaskForUpdate(ctx context.Context, ex txrunner.Executor, taskID uuid.UUID) (*Escrow, error) {
	row := ex.QueryRowContext(ctx, `SELECT `+escrowColumns+` FROM escrows WHERE task_id = $1 FOR UPDATE`, taskID)
	e, err := scanEscrow(row)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewNotFoundError("escrow for task", taskID)
	}
	if err != nil {
		return nil, wrapDBError("escrows.GetByTaskForUpdate", err)
	}
	return e, nil
}

// Fund moves PENDING -> FUNDED, recording the external payment intent id.
func (r *EscrowRepository) Fund(ctx context.Context, ex txrunner.Executor, id uuid.UUID, externalIntentID string, expectedVersion int) (*Escrow, error) {
	row := ex.QueryRowContext(ctx, `
		UPDATE escrows SET state = 'FUNDED', external_payment_intent_id = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND state = 'PENDING' AND version = $3
		RETURNING `+escrowColumns, externalIntentID, id, expectedVersion)
	return scanEscrowOrNil(row, "escrows.Fund")
}

// Release moves FUNDED or LOCKED_DISPUTE -> RELEASED. The HX201/HX801
// triggers double-check task completion and payouts-locked independent of
// this application-level guard.
func (r *EscrowRepository) Release(ctx context.Context, ex txrunner.Executor, id uuid.UUID, expectedFrom domain.EscrowState, externalTransferID string, expectedVersion int) (*Escrow, error) {
	row := ex.QueryRowContext(ctx, `
		UPDATE escrows SET state = 'RELEASED', external_transfer_id = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND state = $3 AND version = $4
		RETURNING `+escrowColumns, externalTransferID, id, expectedFrom, expectedVersion)
	return scanEscrowOrNil(row, "escrows.Release")
}

// Refund moves PENDING, FUNDED, or LOCKED_DISPUTE -> REFUNDED.
func (r *EscrowRepository) Refund(ctx context.Context, ex txrunner.Executor, id uuid.UUID, expectedFrom domain.EscrowState, externalRefundID string, expectedVersion int) (*Escrow, error) {
	row := ex.QueryRowContext(ctx, `
		UPDATE escrows SET state = 'REFUNDED', external_refund_id = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND state = $3 AND version = $4
		RETURNING `+escrowColumns, externalRefundID, id, expectedFrom, expectedVersion)
	return scanEscrowOrNil(row, "escrows.Refund")
}

// PartialRefund moves FUNDED or LOCKED_DISPUTE -> REFUND_PARTIAL. Caller is
// responsible for validating refundAmt + releaseAmt == amount before
// calling (P10); the database does not re-derive it here.
func (r *EscrowRepository) PartialRefund(ctx context.Context, ex txrunner.Executor, id uuid.UUID, expectedFrom domain.EscrowState, refundAmt, releaseAmt int64, externalRefundID string, expectedVersion int) (*Escrow, error) {
	row := ex.QueryRowContext(ctx, `
		UPDATE escrows SET state = 'REFUND_PARTIAL', refund_amount_cents = $1, release_amount_cents = $2,
			external_refund_id = $3, version = version + 1, updated_at = now()
		WHERE id = $4 AND state = $5 AND version = $6
		RETURNING `+escrowColumns, refundAmt, releaseAmt, externalRefundID, id, expectedFrom, expectedVersion)
	return scanEscrowOrNil(row, "escrows.PartialRefund")
}

// LockForDispute moves FUNDED -> LOCKED_DISPUTE.
func (r *EscrowRepository) LockForDispute(ctx context.Context, ex txrunner.Executor, id uuid.UUID, expectedVersion int) (*Escrow, error) {
	row := ex.QueryRowContext(ctx, `
		UPDATE escrows SET state = 'LOCKED_DISPUTE', version = version + 1, updated_at = now()
		WHERE id = $1 AND state = 'FUNDED' AND version = $2
		RETURNING `+escrowColumns, id, expectedVersion)
	return scanEscrowOrNil(row, "escrows.LockForDispute")
}

func scanEscrowOrNil(row *sql.Row, op string) (*Escrow, error) {
	e, err := scanEscrow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError(op, err)
	}
	return e, nil
}
