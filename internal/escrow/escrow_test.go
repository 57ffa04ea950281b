package escrow

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hustlexp/hustlexp-core/internal/domain"
	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/outbox"
	"github.com/hustlexp/hustlexp-core/internal/storage/postgres"
	"github.com/hustlexp/hustlexp-core/internal/storagetest"
)

func TestEngine_Create_RejectsNonPositiveAmount(t *testing.T) {
	e := New()

	_, err := e.Create(context.Background(), nil, uuid.New(), 0)
	require.Error(t, err)
	assert.True(t, hxerrors.IsCode(err, hxerrors.CodeValidation))

	_, err = e.Create(context.Background(), nil, uuid.New(), -100)
	require.Error(t, err)
	assert.True(t, hxerrors.IsCode(err, hxerrors.CodeValidation))
}

func newTestEngine() *Engine {
	return &Engine{
		repo:   postgres.NewEscrowRepository(),
		outbox: outbox.NewWriter(),
	}
}

func strPtr(s string) *string { return &s }
func i64Ptr(n int64) *int64   { return &n }

func TestFund_MovesPendingToFunded(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	id := storagetest.NewUUID()
	taskID := storagetest.NewUUID()

	mock.ExpectQuery(`UPDATE escrows SET state = 'FUNDED'`).
		WillReturnRows(storagetest.EscrowRow(&postgres.Escrow{
			ID: id, TaskID: taskID, AmountCents: 2500, State: domain.EscrowFunded,
			ExternalPaymentIntentID: strPtr("pi_123"), Version: 1,
		}))
	mock.ExpectQuery(`INSERT INTO outbox`).WillReturnRows(storagetest.OutboxRow(&postgres.OutboxEvent{ID: storagetest.NewUUID()}))

	updated, err := e.Fund(context.Background(), runner.DB(), id, "pi_123", 0)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowFunded, updated.State)
	assert.Equal(t, 1, updated.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFund_LostRaceReturnsConflict(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	id := storagetest.NewUUID()

	mock.ExpectQuery(`UPDATE escrows SET state = 'FUNDED'`).WillReturnError(sql.ErrNoRows)

	_, err := e.Fund(context.Background(), runner.DB(), id, "pi_123", 0)
	require.Error(t, err)
	assert.True(t, hxerrors.IsCode(err, hxerrors.CodeInvalidState))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelease_FromFunded_EmitsOutboxEvent(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	id := storagetest.NewUUID()

	mock.ExpectQuery(`UPDATE escrows SET state = 'RELEASED'`).
		WillReturnRows(storagetest.EscrowRow(&postgres.Escrow{
			ID: id, AmountCents: 2500, State: domain.EscrowReleased, Version: 2,
		}))
	mock.ExpectQuery(`INSERT INTO outbox`).WillReturnRows(storagetest.OutboxRow(&postgres.OutboxEvent{ID: storagetest.NewUUID()}))

	updated, err := e.Release(context.Background(), runner.DB(), id, domain.EscrowFunded, "tr_1", 1)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowReleased, updated.State)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelease_LostRaceReturnsConflict(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	id := storagetest.NewUUID()

	mock.ExpectQuery(`UPDATE escrows SET state = 'RELEASED'`).WillReturnError(sql.ErrNoRows)

	_, err := e.Release(context.Background(), runner.DB(), id, domain.EscrowFunded, "tr_1", 1)
	require.Error(t, err)
	assert.True(t, hxerrors.IsCode(err, hxerrors.CodeInvalidState))
}

func TestRefund_FromFunded(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	id := storagetest.NewUUID()

	mock.ExpectQuery(`UPDATE escrows SET state = 'REFUNDED'`).
		WillReturnRows(storagetest.EscrowRow(&postgres.Escrow{
			ID: id, AmountCents: 2500, State: domain.EscrowRefunded, Version: 2,
		}))
	mock.ExpectQuery(`INSERT INTO outbox`).WillReturnRows(storagetest.OutboxRow(&postgres.OutboxEvent{ID: storagetest.NewUUID()}))

	updated, err := e.Refund(context.Background(), runner.DB(), id, domain.EscrowFunded, "re_1", 1)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowRefunded, updated.State)
}

func TestPartialRefund_RejectsMismatchedSplitBeforeWriting(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	id := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM escrows WHERE id = \$1`).
		WillReturnRows(storagetest.EscrowRow(&postgres.Escrow{ID: id, AmountCents: 10000, State: domain.EscrowLockedDispute, Version: 3}))

	_, err := e.PartialRefund(context.Background(), runner.DB(), id, domain.EscrowLockedDispute, 3000, 8000, "re_2", 3)
	require.Error(t, err)
	assert.True(t, hxerrors.IsCode(err, hxerrors.CodeValidation))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPartialRefund_SplitSumsToAmount(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	id := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM escrows WHERE id = \$1`).
		WillReturnRows(storagetest.EscrowRow(&postgres.Escrow{ID: id, AmountCents: 10000, State: domain.EscrowLockedDispute, Version: 3}))
	mock.ExpectQuery(`UPDATE escrows SET state = 'REFUND_PARTIAL'`).
		WillReturnRows(storagetest.EscrowRow(&postgres.Escrow{
			ID: id, AmountCents: 10000, State: domain.EscrowRefundPartial,
			RefundAmountCents: i64Ptr(3000), ReleaseAmountCents: i64Ptr(7000), Version: 4,
		}))
	mock.ExpectQuery(`INSERT INTO outbox`).WillReturnRows(storagetest.OutboxRow(&postgres.OutboxEvent{ID: storagetest.NewUUID()}))

	updated, err := e.PartialRefund(context.Background(), runner.DB(), id, domain.EscrowLockedDispute, 3000, 7000, "re_2", 3)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowRefundPartial, updated.State)
	require.NotNil(t, updated.RefundAmountCents)
	require.NotNil(t, updated.ReleaseAmountCents)
	assert.Equal(t, int64(3000), *updated.RefundAmountCents)
	assert.Equal(t, int64(7000), *updated.ReleaseAmountCents)
	assert.Equal(t, *updated.RefundAmountCents+*updated.ReleaseAmountCents, updated.AmountCents)
}

func TestLockForDispute_FromFunded(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	id := storagetest.NewUUID()

	mock.ExpectQuery(`UPDATE escrows SET state = 'LOCKED_DISPUTE'`).
		WillReturnRows(storagetest.EscrowRow(&postgres.Escrow{ID: id, AmountCents: 2500, State: domain.EscrowLockedDispute, Version: 2}))

	updated, err := e.LockForDispute(context.Background(), runner.DB(), id, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowLockedDispute, updated.State)
}

func TestLockForDispute_LostRaceReturnsConflict(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	id := storagetest.NewUUID()

	mock.ExpectQuery(`UPDATE escrows SET state = 'LOCKED_DISPUTE'`).WillReturnError(sql.ErrNoRows)

	_, err := e.LockForDispute(context.Background(), runner.DB(), id, 1)
	require.Error(t, err)
	assert.True(t, hxerrors.IsCode(err, hxerrors.CodeInvalidState))
}
