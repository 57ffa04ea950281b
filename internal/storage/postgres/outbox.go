package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

// OutboxRepository reads and writes the outbox fabric table (§4.2).
type OutboxRepository struct{}

func NewOutboxRepository() *OutboxRepository { return &OutboxRepository{} }

const outboxColumns = `id, event_type, aggregate_type, aggregate_id, event_version, idempotency_key, payload,
	queue_name, claimed_at, dispatched_at, attempts, created_at`

func scanOutboxEvent(row interface{ Scan(...any) error }) (*OutboxEvent, error) {
	var e OutboxEvent
	err := row.Scan(
		&e.ID, &e.EventType, &e.AggregateType, &e.AggregateID, &e.EventVersion, &e.IdempotencyKey, &e.Payload,
		&e.QueueName, &e.ClaimedAt, &e.DispatchedAt, &e.Attempts, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Write inserts an outbox row. MUST be called within the same transaction
// as the state change it describes (§4.2): if the transaction rolls back,
// the outbox entry never exists.
func (r *OutboxRepository) Write(ctx context.Context, ex txrunner.Executor, eventType, aggregateType string, aggregateID uuid.UUID, eventVersion int, idempotencyKey string, payload []byte, queueName string) (*OutboxEvent, error) {
	row := ex.QueryRowContext(ctx, `
		INSERT INTO outbox (event_type, aggregate_type, aggregate_id, event_version, idempotency_key, payload, queue_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+outboxColumns,
		eventType, aggregateType, aggregateID, eventVersion, idempotencyKey, payload, queueName)
	e, err := scanOutboxEvent(row)
	if err != nil {
		return nil, wrapDBError("outbox.Write", err)
	}
	return e, nil
}

// ClaimBatch atomically claims up to limit undispatched rows for a queue,
// the dispatcher's fan-out source (§4.2). Claimed rows are not yet
// dispatched_at; the dispatcher marks them dispatched after successful
// enqueue via MarkDispatched.
func (r *OutboxRepository) ClaimBatch(ctx context.Context, ex txrunner.Executor, queueName string, limit int) ([]*OutboxEvent, error) {
	rows, err := ex.QueryContext(ctx, `
		UPDATE outbox SET claimed_at = now()
		WHERE id IN (
			SELECT id FROM outbox
			WHERE queue_name = $1 AND dispatched_at IS NULL AND claimed_at IS NULL
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+outboxColumns, queueName, limit)
	if err != nil {
		return nil, wrapDBError("outbox.ClaimBatch", err)
	}
	defer rows.Close()

	var out []*OutboxEvent
	for rows.Next() {
		e, err := scanOutboxEvent(rows)
		if err != nil {
			return nil, wrapDBError("outbox.ClaimBatch", err)
		}
		out = append(out, e)
	}
	return out, wrapDBErrorIfAny("outbox.ClaimBatch", rows.Err())
}

// MarkDispatched records that a claimed row's downstream effect has been
// applied (idempotently, by idempotency_key).
func (r *OutboxRepository) MarkDispatched(ctx context.Context, ex txrunner.Executor, id uuid.UUID) error {
	_, err := ex.ExecContext(ctx, `UPDATE outbox SET dispatched_at = now() WHERE id = $1`, id)
	if err != nil {
		return wrapDBError("outbox.MarkDispatched", err)
	}
	return nil
}

// ReleaseStuckClaims resets claims older than timeout back to unclaimed, so
// a crashed worker's in-flight rows become eligible again. Mirrors the
// external_payment_events stuck-job recovery in §4.2.
func (r *OutboxRepository) ReleaseStuckClaims(ctx context.Context, ex txrunner.Executor, timeout time.Duration) (int64, error) {
	res, err := ex.ExecContext(ctx, `
		UPDATE outbox SET claimed_at = NULL, attempts = attempts + 1
		WHERE dispatched_at IS NULL AND claimed_at IS NOT NULL AND claimed_at < now() - $1::interval`,
		timeout.String())
	if err != nil {
		return 0, wrapDBError("outbox.ReleaseStuckClaims", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountByIdempotencyKey reports how many rows share an idempotency key
// (expected 0 or 1; the UNIQUE constraint is the real enforcement
// mechanism, this is for test assertions of P8).
func (r *OutboxRepository) CountByIdempotencyKey(ctx context.Context, ex txrunner.Executor, key string) (int, error) {
	var n int
	err := ex.QueryRowContext(ctx, `SELECT count(*) FROM outbox WHERE idempotency_key = $1`, key).Scan(&n)
	if err != nil {
		return 0, wrapDBError("outbox.CountByIdempotencyKey", err)
	}
	return n, nil
}
