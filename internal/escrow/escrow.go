// Package escrow implements the Escrow Engine (§4.3): custody state for a
// task's funds, driven entirely by single conditional UPDATEs against the
// `escrows` table. Every mutating method writes its outbox event in the
// same transaction as the state change.
package escrow

import (
	"context"

	"github.com/google/uuid"

	"github.com/hustlexp/hustlexp-core/internal/domain"
	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/logging"
	"github.com/hustlexp/hustlexp-core/internal/outbox"
	"github.com/hustlexp/hustlexp-core/internal/storage/postgres"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

const (
	EventFunded   = "escrow.funded"
	EventReleased = "escrow.released"
	EventRefunded = "escrow.refunded"
)

// Engine is the sole writer of escrow state. Callers never issue their own
// UPDATE against the escrows table.
type Engine struct {
	repo   *postgres.EscrowRepository
	outbox *outbox.Writer
	log    *logging.Logger
}

func New() *Engine {
	return &Engine{
		repo:   postgres.NewEscrowRepository(),
		outbox: outbox.NewWriter(),
		log:    logging.GetDefault().Component("escrow"),
	}
}

// Create opens a new PENDING escrow for a task. amount is immutable
// thereafter (HX004).
func (e *Engine) Create(ctx context.Context, ex txrunner.Executor, taskID uuid.UUID, amountCents int64) (*postgres.Escrow, error) {
	if amountCents <= 0 {
		return nil, hxerrors.NewValidationError("escrow amount must be positive", "amount_cents", amountCents)
	}
	return e.repo.Create(ctx, ex, taskID, amountCents)
}

// Get fetches an escrow by id.
func (e *Engine) Get(ctx context.Context, ex txrunner.Executor, id uuid.UUID) (*postgres.Escrow, error) {
	return e.repo.Get(ctx, ex, id)
}

// GetForUpdate fetches an escrow by id, row-locked.
func (e *Engine) GetForUpdate(ctx context.Context, ex txrunner.Executor, id uuid.UUID) (*postgres.Escrow, error) {
	return e.repo.GetForUpdate(ctx, ex, id)
}

// GetByExternalIntentIDForUpdate finds the escrow for a given payment
// processor intent id, row-locked.
func (e *Engine) GetByExternalIntentIDForUpdate(ctx context.Context, ex txrunner.Executor, externalIntentID string) (*postgres.Escrow, error) {
	return e.repo.GetByExternalIntentIDForUpdate(ctx, ex, externalIntentID)
}

// GetByTaskForUpdate fetches a task's escrow, row-locked, returning
// (nil, nil) if the task has no escrow yet (e.g. progress is being
// advanced before funding). Callers that need a hard requirement for the
// escrow to exist should call Get directly against a known escrow id
// instead.
func (e *Engine) GetByTaskForUpdate(ctx context.Context, ex txrunner.Executor, taskID uuid.UUID) (*postgres.Escrow, error) {
	es, err := e.repo.GetByTaskForUpdate(ctx, ex, taskID)
	if hxerrors.IsCode(err, hxerrors.CodeNotFound) {
		return nil, nil
	}
	return es, err
}

// Fund moves PENDING -> FUNDED once the payment processor confirms the
// intent. Zero-row UPDATE (state/version mismatch) is surfaced as a
// conflict the caller may retry after re-reading.
func (e *Engine) Fund(ctx context.Context, ex txrunner.Executor, id uuid.UUID, externalIntentID string, expectedVersion int) (*postgres.Escrow, error) {
	updated, err := e.repo.Fund(ctx, ex, id, externalIntentID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, hxerrors.NewConflictError(hxerrors.CodeInvalidState, "escrow version or state changed during update", nil)
	}
	if err := e.emit(ctx, ex, EventFunded, updated.ID, updated.Version); err != nil {
		return nil, err
	}
	return updated, nil
}

// Release moves FUNDED or LOCKED_DISPUTE -> RELEASED. The caller (Payment
// Ingestion or Dispute resolution) supplies expectedFrom to disambiguate
// which edge of the state machine it expects; the kernel's HX201/HX801
// triggers independently re-verify task completion and payouts-lock.
func (e *Engine) Release(ctx context.Context, ex txrunner.Executor, id uuid.UUID, expectedFrom domain.EscrowState, externalTransferID string, expectedVersion int) (*postgres.Escrow, error) {
	updated, err := e.repo.Release(ctx, ex, id, expectedFrom, externalTransferID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, hxerrors.NewConflictError(hxerrors.CodeInvalidState, "escrow version or state changed during update", nil)
	}
	if err := e.emit(ctx, ex, EventReleased, updated.ID, updated.Version); err != nil {
		return nil, err
	}
	return updated, nil
}

// Refund moves PENDING, FUNDED, or LOCKED_DISPUTE -> REFUNDED.
func (e *Engine) Refund(ctx context.Context, ex txrunner.Executor, id uuid.UUID, expectedFrom domain.EscrowState, externalRefundID string, expectedVersion int) (*postgres.Escrow, error) {
	updated, err := e.repo.Refund(ctx, ex, id, expectedFrom, externalRefundID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, hxerrors.NewConflictError(hxerrors.CodeInvalidState, "escrow version or state changed during update", nil)
	}
	if err := e.emit(ctx, ex, EventRefunded, updated.ID, updated.Version); err != nil {
		return nil, err
	}
	return updated, nil
}

// PartialRefund moves FUNDED or LOCKED_DISPUTE -> REFUND_PARTIAL. Requires
// refundAmt + releaseAmt == the escrow's original amount (P10); it reads the
// escrow itself and rejects a mismatch with a validation error before
// writing, since the database does not re-derive it.
func (e *Engine) PartialRefund(ctx context.Context, ex txrunner.Executor, id uuid.UUID, expectedFrom domain.EscrowState, refundAmt, releaseAmt int64, externalRefundID string, expectedVersion int) (*postgres.Escrow, error) {
	current, err := e.repo.Get(ctx, ex, id)
	if err != nil {
		return nil, err
	}
	if refundAmt+releaseAmt != current.AmountCents {
		return nil, hxerrors.NewValidationError("refundAmt + releaseAmt must equal escrow amount",
			"refund_amt", refundAmt, "release_amt", releaseAmt, "amount_cents", current.AmountCents)
	}

	updated, err := e.repo.PartialRefund(ctx, ex, id, expectedFrom, refundAmt, releaseAmt, externalRefundID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, hxerrors.NewConflictError(hxerrors.CodeInvalidState, "escrow version or state changed during update", nil)
	}
	// REFUND_PARTIAL carries both a refund and a release leg; the refund leg
	// is the one downstream consumers key off for the payout split.
	if err := e.emit(ctx, ex, EventRefunded, updated.ID, updated.Version); err != nil {
		return nil, err
	}
	return updated, nil
}

// LockForDispute moves FUNDED -> LOCKED_DISPUTE. Called by the Dispute
// engine within the same transaction as the dispute row's creation.
func (e *Engine) LockForDispute(ctx context.Context, ex txrunner.Executor, id uuid.UUID, expectedVersion int) (*postgres.Escrow, error) {
	updated, err := e.repo.LockForDispute(ctx, ex, id, expectedVersion)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, hxerrors.NewConflictError(hxerrors.CodeInvalidState, "escrow version or state changed during update", nil)
	}
	return updated, nil
}

func (e *Engine) emit(ctx context.Context, ex txrunner.Executor, eventType string, escrowID uuid.UUID, newVersion int) error {
	key := outbox.IdempotencyKey(eventType, escrowID, newVersion)
	payload := []byte(`{"escrow_id":"` + escrowID.String() + `"}`)
	if err := e.outbox.Write(ctx, ex, eventType, "escrow", escrowID, newVersion, key, payload, "critical_payments"); err != nil {
		return err
	}
	e.log.Debug("escrow event emitted", "event_type", eventType, "escrow_id", escrowID, "version", newVersion)
	return nil
}
