// Package payment implements Payment Ingestion (§4.5): turning at-least-once,
// unordered external payment processor events into calls against the Escrow
// Engine, with dedup/claim/retry handled by the external_payment_events
// table and a single transaction spanning claim, escrow mutation, and
// progress advance.
package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hustlexp/hustlexp-core/internal/domain"
	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/escrow"
	"github.com/hustlexp/hustlexp-core/internal/logging"
	"github.com/hustlexp/hustlexp-core/internal/storage/postgres"
	"github.com/hustlexp/hustlexp-core/internal/task"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventTransferCreated        = "transfer.created"
	EventChargeRefunded         = "charge.refunded"
)

// eventPayload is the subset of a webhook body Ingestion reads. The
// processor's own payload carries far more; this module only needs the
// correlation and amount fields §4.5 requires every event to surface.
type eventPayload struct {
	EscrowID        *uuid.UUID `json:"escrow_id,omitempty"`
	PaymentIntentID string     `json:"payment_intent_id,omitempty"`
	TransferID      string     `json:"transfer_id,omitempty"`
	RefundID        string     `json:"refund_id,omitempty"`
	AmountCents     int64      `json:"amount_cents,omitempty"`
}

// Engine processes external payment events against the Escrow Engine and
// advances task progress on settlement.
type Engine struct {
	runner *txrunner.Runner
	events *postgres.ExternalPaymentEventRepository
	escrow *escrow.Engine
	task   *task.Engine
	log    *logging.Logger
}

func New(runner *txrunner.Runner, escrowEngine *escrow.Engine, taskEngine *task.Engine) *Engine {
	return &Engine{
		runner: runner,
		events: postgres.NewExternalPaymentEventRepository(),
		escrow: escrowEngine,
		task:   taskEngine,
		log:    logging.GetDefault().Component("payment"),
	}
}

// Ingest records a new webhook delivery. The external_id primary key is the
// dedup boundary: a second delivery of the same id is silently absorbed here
// (ok is false, err is nil) rather than surfaced as an error.
func (e *Engine) Ingest(ctx context.Context, ex txrunner.Executor, externalID, eventType string, payload []byte) (ok bool, err error) {
	_, ok, err = e.events.Record(ctx, ex, externalID, eventType, payload)
	return ok, err
}

// ProcessEvent claims and processes one recorded event (§4.5). If the event
// is already claimed or already processed, Claim returns nil and this is a
// silent no-op — the caller (a poller or a direct webhook handler racing a
// retry) should simply move on. A processing error is recorded against the
// event as "failed" and rethrown so the enclosing job queue can retry later.
func (e *Engine) ProcessEvent(ctx context.Context, externalID string) error {
	return e.runner.WithTransaction(ctx, func(ctx context.Context, ex txrunner.Executor) error {
		ev, err := e.events.Claim(ctx, ex, externalID)
		if err != nil {
			return err
		}
		if ev == nil {
			return nil
		}

		result, note, procErr := e.dispatch(ctx, ex, ev)

		var errMsg *string
		if procErr != nil {
			msg := procErr.Error()
			errMsg = &msg
			result = domain.PaymentEventFailed
		} else if note != "" {
			errMsg = &note
		}
		if err := e.events.Finalize(ctx, ex, externalID, result, errMsg); err != nil {
			return err
		}
		if procErr != nil {
			return procErr
		}
		e.log.Info("payment event processed", "external_id", externalID, "event_type", ev.EventType, "result", result)
		return nil
	})
}

// dispatch routes ev to its handler and returns the outcome plus an optional
// note recorded against the event's error_message column (§9: some SKIPPED
// outcomes carry an operator-facing explanation even though they are not
// failures).
func (e *Engine) dispatch(ctx context.Context, ex txrunner.Executor, ev *postgres.ExternalPaymentEvent) (domain.PaymentEventResult, string, error) {
	var p eventPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return domain.PaymentEventFailed, "", hxerrors.NewValidationError("malformed payment event payload", "external_id", ev.ExternalID, "error", err.Error())
	}

	switch ev.EventType {
	case EventPaymentIntentSucceeded:
		return e.handleFund(ctx, ex, p)
	case EventTransferCreated:
		return e.handleRelease(ctx, ex, p)
	case EventChargeRefunded:
		return e.handleRefund(ctx, ex, p)
	default:
		e.log.Debug("skipping unrecognized payment event type", "event_type", ev.EventType, "external_id", ev.ExternalID)
		return domain.PaymentEventSkipped, "", nil
	}
}

// resolveEscrow locates the target escrow from the payload, falling back to
// a lookup by payment intent id when the event carries no escrow id
// directly (the charge.refunded fallback, §4.5).
func (e *Engine) resolveEscrow(ctx context.Context, ex txrunner.Executor, p eventPayload) (*postgres.Escrow, error) {
	if p.EscrowID != nil {
		return e.escrow.GetForUpdate(ctx, ex, *p.EscrowID)
	}
	if p.PaymentIntentID == "" {
		return nil, hxerrors.NewValidationError("payment event carries neither escrow_id nor payment_intent_id")
	}
	return e.escrow.GetByExternalIntentIDForUpdate(ctx, ex, p.PaymentIntentID)
}

func (e *Engine) handleFund(ctx context.Context, ex txrunner.Executor, p eventPayload) (domain.PaymentEventResult, string, error) {
	es, err := e.resolveEscrow(ctx, ex, p)
	if err != nil {
		return domain.PaymentEventFailed, "", err
	}
	if es.State.Terminal() || es.State != domain.EscrowPending {
		return domain.PaymentEventSkipped, "", nil
	}
	if p.AmountCents != 0 && p.AmountCents != es.AmountCents {
		return domain.PaymentEventFailed, "", hxerrors.NewValidationError("funded amount does not match escrow amount",
			"escrow_id", es.ID, "escrow_amount_cents", es.AmountCents, "event_amount_cents", p.AmountCents)
	}
	if _, err := e.escrow.Fund(ctx, ex, es.ID, p.PaymentIntentID, es.Version); err != nil {
		return domain.PaymentEventFailed, "", err
	}
	return domain.PaymentEventSuccess, "", nil
}

func (e *Engine) handleRelease(ctx context.Context, ex txrunner.Executor, p eventPayload) (domain.PaymentEventResult, string, error) {
	es, err := e.resolveEscrow(ctx, ex, p)
	if err != nil {
		return domain.PaymentEventFailed, "", err
	}
	if es.State.Terminal() {
		return domain.PaymentEventSkipped, "", nil
	}
	if es.State == domain.EscrowLockedDispute {
		// Funds locked for an active dispute never release from a processor
		// transfer event; resolution must go through Dispute.Resolve.
		return domain.PaymentEventSkipped, "dispute in progress, manual review required", nil
	}
	if es.State != domain.EscrowFunded {
		return domain.PaymentEventFailed, "", fmt.Errorf("escrow %s not in a releasable state: %s", es.ID, es.State)
	}

	if _, err := e.escrow.Release(ctx, ex, es.ID, domain.EscrowFunded, p.TransferID, es.Version); err != nil {
		return domain.PaymentEventFailed, "", err
	}
	if _, err := e.task.AdvanceProgress(ctx, ex, es.TaskID, domain.ProgressClosed, domain.ActorSystem); err != nil {
		return domain.PaymentEventFailed, "", err
	}
	return domain.PaymentEventSuccess, "", nil
}

func (e *Engine) handleRefund(ctx context.Context, ex txrunner.Executor, p eventPayload) (domain.PaymentEventResult, string, error) {
	es, err := e.resolveEscrow(ctx, ex, p)
	if err != nil {
		return domain.PaymentEventFailed, "", err
	}
	if es.State.Terminal() {
		return domain.PaymentEventSkipped, "", nil
	}
	if es.State != domain.EscrowPending && es.State != domain.EscrowFunded && es.State != domain.EscrowLockedDispute {
		return domain.PaymentEventFailed, "", fmt.Errorf("escrow %s not in a refundable state: %s", es.ID, es.State)
	}

	if _, err := e.escrow.Refund(ctx, ex, es.ID, es.State, p.RefundID, es.Version); err != nil {
		return domain.PaymentEventFailed, "", err
	}
	if _, err := e.task.AdvanceProgress(ctx, ex, es.TaskID, domain.ProgressClosed, domain.ActorSystem); err != nil {
		return domain.PaymentEventFailed, "", err
	}
	return domain.PaymentEventSuccess, "", nil
}
