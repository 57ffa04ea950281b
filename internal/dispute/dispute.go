// Package dispute implements Dispute & Resolution (§4.7): opening a
// dispute locks the task's escrow and freezes its progress axis; resolving
// one releases, refunds, or splits the escrow and, via the outbox, triggers
// tier/hold penalties on the party that lost.
package dispute

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hustlexp/hustlexp-core/internal/domain"
	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/escrow"
	"github.com/hustlexp/hustlexp-core/internal/logging"
	"github.com/hustlexp/hustlexp-core/internal/outbox"
	"github.com/hustlexp/hustlexp-core/internal/storage/postgres"
	"github.com/hustlexp/hustlexp-core/internal/task"
	"github.com/hustlexp/hustlexp-core/internal/trust"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

const EventResolved = "dispute.resolved"

// responseWindow is how long after a task completes a dispute may still be
// opened against it (§4.7).
const responseWindow = 48 * time.Hour

// Engine is the sole writer of dispute state.
type Engine struct {
	disputes *postgres.DisputeRepository
	tasks    *postgres.TaskRepository
	task     *task.Engine
	escrow   *escrow.Engine
	trust    *trust.Engine
	outbox   *outbox.Writer
	log      *logging.Logger
}

func New(taskEngine *task.Engine, escrowEngine *escrow.Engine, trustEngine *trust.Engine) *Engine {
	return &Engine{
		disputes: postgres.NewDisputeRepository(),
		tasks:    postgres.NewTaskRepository(),
		task:     taskEngine,
		escrow:   escrowEngine,
		trust:    trustEngine,
		outbox:   outbox.NewWriter(),
		log:      logging.GetDefault().Component("dispute"),
	}
}

// CreateParams groups Create's inputs.
type CreateParams struct {
	TaskID      uuid.UUID
	EscrowID    uuid.UUID
	InitiatedBy uuid.UUID
	PosterID    uuid.UUID
	WorkerID    uuid.UUID
	Reason      string
}

// Create opens a dispute within the 48-hour post-completion window,
// creating the dispute row and locking the escrow FUNDED -> LOCKED_DISPUTE
// in the same transaction; any failure rolls both back (§4.7).
func (e *Engine) Create(ctx context.Context, ex txrunner.Executor, p CreateParams) (*postgres.Dispute, error) {
	t, err := e.tasks.Get(ctx, ex, p.TaskID)
	if err != nil {
		return nil, err
	}
	if t.CompletedAt == nil || time.Since(*t.CompletedAt) > responseWindow {
		return nil, hxerrors.NewStateError("dispute window has closed", "task_id", p.TaskID, "completed_at", t.CompletedAt)
	}

	es, err := e.escrow.GetForUpdate(ctx, ex, p.EscrowID)
	if err != nil {
		return nil, err
	}

	d, err := e.disputes.Create(ctx, ex, p.TaskID, p.EscrowID, p.InitiatedBy, p.PosterID, p.WorkerID, p.Reason)
	if err != nil {
		return nil, err
	}
	if _, err := e.escrow.LockForDispute(ctx, ex, es.ID, es.Version); err != nil {
		return nil, err
	}
	if _, err := e.task.OpenDispute(ctx, ex, p.TaskID); err != nil {
		return nil, err
	}
	return d, nil
}

// evidenceEntry is one appended element of a dispute's evidence array.
type evidenceEntry struct {
	By        uuid.UUID `json:"by"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Respond appends the worker's response and moves OPEN -> UNDER_REVIEW.
func (e *Engine) Respond(ctx context.Context, ex txrunner.Executor, disputeID, workerID uuid.UUID, message string) (*postgres.Dispute, error) {
	d, err := e.disputes.GetForUpdate(ctx, ex, disputeID)
	if err != nil {
		return nil, err
	}
	entry, err := json.Marshal([]evidenceEntry{{By: workerID, Message: message, CreatedAt: time.Now()}})
	if err != nil {
		return nil, hxerrors.NewInternalError("failed to marshal evidence entry", err)
	}
	updated, err := e.disputes.AppendEvidence(ctx, ex, disputeID, entry, d.Version)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, hxerrors.NewConflictError(hxerrors.CodeInvalidState, "dispute version or state changed during update", nil)
	}
	return updated, nil
}

// ResolveParams groups Resolve's inputs. RefundAmt/ReleaseAmt are only
// meaningful (and required) for OutcomeSplit.
type ResolveParams struct {
	DisputeID  uuid.UUID
	ResolvedBy uuid.UUID
	Outcome    domain.DisputeOutcome
	RefundAmt  *int64
	ReleaseAmt *int64
}

// Resolve applies an admin-gated resolution outcome to the escrow, advances
// the task's lifecycle out of DISPUTED, and emits the outbox event the
// Trust Engine's PenaltySink consumes to apply tier/hold effects (§4.7).
func (e *Engine) Resolve(ctx context.Context, ex txrunner.Executor, p ResolveParams) (*postgres.Dispute, error) {
	canResolve, err := e.trust.CanResolveDisputes(ctx, ex, p.ResolvedBy)
	if err != nil {
		return nil, err
	}
	if !canResolve {
		return nil, hxerrors.NewAuthorityError(hxerrors.CodeForbidden, "user does not hold the dispute-resolution admin capability")
	}

	d, err := e.disputes.GetForUpdate(ctx, ex, p.DisputeID)
	if err != nil {
		return nil, err
	}
	if d.State == domain.DisputeResolved {
		return nil, hxerrors.NewStateError("dispute is already resolved", "dispute_id", p.DisputeID)
	}

	es, err := e.escrow.GetForUpdate(ctx, ex, d.EscrowID)
	if err != nil {
		return nil, err
	}
	if es.State != domain.EscrowLockedDispute {
		return nil, hxerrors.NewStateError("escrow is not locked for dispute", "escrow_id", es.ID, "state", es.State)
	}

	externalRef := fmt.Sprintf("dispute-resolution:%s", p.DisputeID)
	taskOutcome := domain.LifecycleCompleted

	switch p.Outcome {
	case domain.OutcomeRelease:
		if _, err := e.escrow.Release(ctx, ex, es.ID, domain.EscrowLockedDispute, externalRef, es.Version); err != nil {
			return nil, err
		}
	case domain.OutcomeRefund:
		if _, err := e.escrow.Refund(ctx, ex, es.ID, domain.EscrowLockedDispute, externalRef, es.Version); err != nil {
			return nil, err
		}
		taskOutcome = domain.LifecycleCancelled
	case domain.OutcomeSplit:
		if p.RefundAmt == nil || p.ReleaseAmt == nil {
			return nil, hxerrors.NewValidationError("split resolution requires both refund and release amounts")
		}
		if _, err := e.escrow.PartialRefund(ctx, ex, es.ID, domain.EscrowLockedDispute, *p.RefundAmt, *p.ReleaseAmt, externalRef, es.Version); err != nil {
			return nil, err
		}
	default:
		return nil, hxerrors.NewValidationError("unrecognized dispute outcome", "outcome", p.Outcome)
	}

	resolved, err := e.disputes.Resolve(ctx, ex, p.DisputeID, p.ResolvedBy, p.Outcome, p.RefundAmt, p.ReleaseAmt, d.Version)
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return nil, hxerrors.NewConflictError(hxerrors.CodeInvalidState, "dispute version changed during update", nil)
	}

	if _, err := e.task.ResolveDispute(ctx, ex, d.TaskID, taskOutcome); err != nil {
		return nil, err
	}

	if err := e.emitResolved(ctx, ex, resolved); err != nil {
		return nil, err
	}
	return resolved, nil
}

func (e *Engine) emitResolved(ctx context.Context, ex txrunner.Executor, d *postgres.Dispute) error {
	payload, err := json.Marshal(trust.DisputePenaltyPayload{
		DisputeID: d.ID,
		TaskID:    d.TaskID,
		Outcome:   *d.ResolutionOutcome,
		PosterID:  d.PosterID,
		WorkerID:  d.WorkerID,
	})
	if err != nil {
		return hxerrors.NewInternalError("failed to marshal dispute resolution payload", err)
	}
	key := outbox.IdempotencyKey(EventResolved, d.ID, d.Version)
	return e.outbox.Write(ctx, ex, EventResolved, "dispute", d.ID, d.Version, key, payload, "trust_penalties")
}
