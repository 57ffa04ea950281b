package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

// PaymentDisputeRepository writes append-only payment_disputes rows: a
// processor-reported chargeback or dispute notification, distinct from
// the buyer/worker disputes table. The HX811 trigger blocks DELETE at the
// database level; UPDATE is not blocked there, and this repository never
// issues it, mirroring how the teacher's ledger writers never issue
// UPDATE/DELETE against audit-trail tables even where the database doesn't
// forbid it.
type PaymentDisputeRepository struct{}

func NewPaymentDisputeRepository() *PaymentDisputeRepository { return &PaymentDisputeRepository{} }

// Record inserts a chargeback/dispute notification row.
func (r *PaymentDisputeRepository) Record(ctx context.Context, ex txrunner.Executor, externalEventID string, taskID *uuid.UUID, disputeType string, payload []byte) (*PaymentDispute, error) {
	row := ex.QueryRowContext(ctx, `
		INSERT INTO payment_disputes (external_event_id, task_id, dispute_type, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, external_event_id, task_id, dispute_type, payload, created_at`,
		externalEventID, taskID, disputeType, payload)
	var d PaymentDispute
	if err := row.Scan(&d.ID, &d.ExternalEventID, &d.TaskID, &d.DisputeType, &d.Payload, &d.CreatedAt); err != nil {
		return nil, wrapDBError("payment_disputes.Record", err)
	}
	return &d, nil
}

// ListForTask returns a task's chargeback/dispute notification history.
func (r *PaymentDisputeRepository) ListForTask(ctx context.Context, ex txrunner.Executor, taskID uuid.UUID) ([]*PaymentDispute, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, external_event_id, task_id, dispute_type, payload, created_at
		FROM payment_disputes WHERE task_id = $1 ORDER BY created_at`, taskID)
	if err != nil {
		return nil, wrapDBError("payment_disputes.ListForTask", err)
	}
	defer rows.Close()

	var out []*PaymentDispute
	for rows.Next() {
		var d PaymentDispute
		if err := rows.Scan(&d.ID, &d.ExternalEventID, &d.TaskID, &d.DisputeType, &d.Payload, &d.CreatedAt); err != nil {
			return nil, wrapDBError("payment_disputes.ListForTask", err)
		}
		out = append(out, &d)
	}
	return out, wrapDBErrorIfAny("payment_disputes.ListForTask", rows.Err())
}
