package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/hustlexp/hustlexp-core/internal/domain"
	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

// ExternalPaymentEventRepository reads and writes external_payment_events,
// the processor-webhook dedup and claim table (§4.5). external_id is the
// table's primary key: a second insert of the same id is the dedup
// mechanism itself, not an application-level check.
type ExternalPaymentEventRepository struct{}

func NewExternalPaymentEventRepository() *ExternalPaymentEventRepository {
	return &ExternalPaymentEventRepository{}
}

const paymentEventColumns = `external_id, event_type, payload, claimed_at, processed_at, result, error_message, created_at`

func scanPaymentEvent(row interface{ Scan(...any) error }) (*ExternalPaymentEvent, error) {
	var e ExternalPaymentEvent
	err := row.Scan(&e.ExternalID, &e.EventType, &e.Payload, &e.ClaimedAt, &e.ProcessedAt, &e.Result, &e.ErrorMessage, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Record inserts a new event row, or reports that it already exists.
// ok is false (no error) on a duplicate external_id: the caller should
// treat this as "already seen" rather than a failure.
func (r *ExternalPaymentEventRepository) Record(ctx context.Context, ex txrunner.Executor, externalID, eventType string, payload []byte) (event *ExternalPaymentEvent, ok bool, err error) {
	row := ex.QueryRowContext(ctx, `
		INSERT INTO external_payment_events (external_id, event_type, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING `+paymentEventColumns, externalID, eventType, payload)
	e, err := scanPaymentEvent(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapDBError("payment_events.Record", err)
	}
	return e, true, nil
}

// Get fetches an event by its processor-assigned external id.
func (r *ExternalPaymentEventRepository) Get(ctx context.Context, ex txrunner.Executor, externalID string) (*ExternalPaymentEvent, error) {
	row := ex.QueryRowContext(ctx, `SELECT `+paymentEventColumns+` FROM external_payment_events WHERE external_id = $1`, externalID)
	e, err := scanPaymentEvent(row)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewNotFoundError("external_payment_event", externalID)
	}
	if err != nil {
		return nil, wrapDBError("payment_events.Get", err)
	}
	return e, nil
}

// Claim atomically marks an unclaimed, unprocessed event as claimed,
// the ingestion worker's single-processor guarantee (§4.5). A nil result
// means another worker already claimed it or it was already processed.
func (r *ExternalPaymentEventRepository) Claim(ctx context.Context, ex txrunner.Executor, externalID string) (*ExternalPaymentEvent, error) {
	row := ex.QueryRowContext(ctx, `
		UPDATE external_payment_events SET claimed_at = now(), result = $2
		WHERE external_id = $1 AND claimed_at IS NULL AND processed_at IS NULL
		RETURNING `+paymentEventColumns, externalID, domain.PaymentEventProcessing)
	e, err := scanPaymentEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("payment_events.Claim", err)
	}
	return e, nil
}

// Finalize records the terminal outcome of processing a claimed event.
func (r *ExternalPaymentEventRepository) Finalize(ctx context.Context, ex txrunner.Executor, externalID string, result domain.PaymentEventResult, errMsg *string) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE external_payment_events SET processed_at = now(), result = $1, error_message = $2
		WHERE external_id = $3`, result, errMsg, externalID)
	if err != nil {
		return wrapDBError("payment_events.Finalize", err)
	}
	return nil
}

// ReleaseStuckClaims resets claims older than timeout that never reached a
// terminal result, so a crashed ingestion worker's rows get retried (§4.5).
func (r *ExternalPaymentEventRepository) ReleaseStuckClaims(ctx context.Context, ex txrunner.Executor, timeout time.Duration) (int64, error) {
	res, err := ex.ExecContext(ctx, `
		UPDATE external_payment_events SET claimed_at = NULL, error_message = 'released by stuck-job recovery'
		WHERE result = $2 AND processed_at IS NULL AND claimed_at < now() - $1::interval`,
		timeout.String(), domain.PaymentEventProcessing)
	if err != nil {
		return 0, wrapDBError("payment_events.ReleaseStuckClaims", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
