package dispute_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hustlexp/hustlexp-core/internal/dispute"
	"github.com/hustlexp/hustlexp-core/internal/domain"
	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/escrow"
	"github.com/hustlexp/hustlexp-core/internal/storage/postgres"
	"github.com/hustlexp/hustlexp-core/internal/storagetest"
	"github.com/hustlexp/hustlexp-core/internal/task"
	"github.com/hustlexp/hustlexp-core/internal/trust"
)

func TestCreate_LocksEscrowAndOpensDisputeWithinWindow(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	taskEngine := task.New(task.Deps{})
	escrowEngine := escrow.New()
	trustEngine := trust.New(runner, trust.ConservativeStats{}, 64)
	e := dispute.New(taskEngine, escrowEngine, trustEngine)

	taskID := storagetest.NewUUID()
	escrowID := storagetest.NewUUID()
	completedAt := time.Now().Add(-time.Hour)

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleProofSubmitted, CompletedAt: &completedAt, Version: 3}))
	mock.ExpectQuery(`SELECT .* FROM escrows WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(storagetest.EscrowRow(&postgres.Escrow{ID: escrowID, TaskID: taskID, AmountCents: 2500, State: domain.EscrowFunded, Version: 1}))
	mock.ExpectQuery(`INSERT INTO disputes`).
		WillReturnRows(storagetest.DisputeRow(&postgres.Dispute{ID: storagetest.NewUUID(), TaskID: taskID, EscrowID: escrowID, State: domain.DisputeOpen}))
	mock.ExpectQuery(`UPDATE escrows SET state = 'LOCKED_DISPUTE'`).
		WillReturnRows(storagetest.EscrowRow(&postgres.Escrow{ID: escrowID, TaskID: taskID, AmountCents: 2500, State: domain.EscrowLockedDispute, Version: 2}))
	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleProofSubmitted, CompletedAt: &completedAt, Version: 3}))
	mock.ExpectQuery(`UPDATE tasks SET lifecycle_state = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleDisputed, CompletedAt: &completedAt, Version: 4}))

	d, err := e.Create(context.Background(), runner.DB(), dispute.CreateParams{
		TaskID: taskID, EscrowID: escrowID, InitiatedBy: storagetest.NewUUID(),
		PosterID: storagetest.NewUUID(), WorkerID: storagetest.NewUUID(), Reason: "not delivered",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeOpen, d.State)
}

func TestCreate_RejectsOutsideResponseWindow(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	taskEngine := task.New(task.Deps{})
	escrowEngine := escrow.New()
	trustEngine := trust.New(runner, trust.ConservativeStats{}, 64)
	e := dispute.New(taskEngine, escrowEngine, trustEngine)

	taskID := storagetest.NewUUID()
	completedAt := time.Now().Add(-72 * time.Hour)

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleProofSubmitted, CompletedAt: &completedAt, Version: 3}))

	_, err := e.Create(context.Background(), runner.DB(), dispute.CreateParams{TaskID: taskID, EscrowID: storagetest.NewUUID()})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRespond_AppendsEvidenceAndMovesUnderReview(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	taskEngine := task.New(task.Deps{})
	escrowEngine := escrow.New()
	trustEngine := trust.New(runner, trust.ConservativeStats{}, 64)
	e := dispute.New(taskEngine, escrowEngine, trustEngine)

	disputeID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM disputes WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(storagetest.DisputeRow(&postgres.Dispute{ID: disputeID, State: domain.DisputeOpen, Version: 1}))
	mock.ExpectQuery(`UPDATE disputes SET evidence = evidence`).
		WillReturnRows(storagetest.DisputeRow(&postgres.Dispute{ID: disputeID, State: domain.DisputeUnderReview, Version: 2}))

	updated, err := e.Respond(context.Background(), runner.DB(), disputeID, storagetest.NewUUID(), "here is my side")
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeUnderReview, updated.State)
}

func TestResolve_ReleaseOutcomeCompletesTask(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	taskEngine := task.New(task.Deps{})
	escrowEngine := escrow.New()
	trustEngine := trust.New(runner, trust.ConservativeStats{}, 64)
	e := dispute.New(taskEngine, escrowEngine, trustEngine)

	disputeID := storagetest.NewUUID()
	taskID := storagetest.NewUUID()
	escrowID := storagetest.NewUUID()
	resolverID := storagetest.NewUUID()
	outcome := domain.OutcomeRelease

	mock.ExpectQuery(`SELECT can_resolve_disputes`).WillReturnRows(storagetest.BoolRow(true))
	mock.ExpectQuery(`SELECT .* FROM disputes WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(storagetest.DisputeRow(&postgres.Dispute{ID: disputeID, TaskID: taskID, EscrowID: escrowID, State: domain.DisputeUnderReview, Version: 2}))
	mock.ExpectQuery(`SELECT .* FROM escrows WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(storagetest.EscrowRow(&postgres.Escrow{ID: escrowID, TaskID: taskID, AmountCents: 2500, State: domain.EscrowLockedDispute, Version: 2}))
	mock.ExpectQuery(`UPDATE escrows SET state = 'RELEASED'`).
		WillReturnRows(storagetest.EscrowRow(&postgres.Escrow{ID: escrowID, TaskID: taskID, AmountCents: 2500, State: domain.EscrowReleased, Version: 3}))
	mock.ExpectQuery(`INSERT INTO outbox`).
		WillReturnRows(storagetest.OutboxRow(&postgres.OutboxEvent{ID: storagetest.NewUUID()}))
	mock.ExpectQuery(`UPDATE disputes SET state = 'RESOLVED'`).
		WillReturnRows(storagetest.DisputeRow(&postgres.Dispute{ID: disputeID, TaskID: taskID, EscrowID: escrowID, State: domain.DisputeResolved, ResolutionOutcome: &outcome, Version: 3}))
	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleDisputed, Version: 4}))
	mock.ExpectQuery(`UPDATE tasks SET lifecycle_state = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleCompleted, Version: 5}))
	mock.ExpectQuery(`INSERT INTO outbox`).
		WillReturnRows(storagetest.OutboxRow(&postgres.OutboxEvent{ID: storagetest.NewUUID()}))

	resolved, err := e.Resolve(context.Background(), runner.DB(), dispute.ResolveParams{
		DisputeID: disputeID, ResolvedBy: resolverID, Outcome: domain.OutcomeRelease,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeResolved, resolved.State)
}

func TestResolve_RejectsWithoutAdminCapability(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	taskEngine := task.New(task.Deps{})
	escrowEngine := escrow.New()
	trustEngine := trust.New(runner, trust.ConservativeStats{}, 64)
	e := dispute.New(taskEngine, escrowEngine, trustEngine)

	mock.ExpectQuery(`SELECT can_resolve_disputes`).WillReturnRows(storagetest.BoolRow(false))

	_, err := e.Resolve(context.Background(), runner.DB(), dispute.ResolveParams{
		DisputeID: storagetest.NewUUID(), ResolvedBy: storagetest.NewUUID(), Outcome: domain.OutcomeRelease,
	})
	require.Error(t, err)
	assert.True(t, hxerrors.IsCode(err, hxerrors.CodeForbidden))
}

func TestResolve_SplitRequiresBothAmounts(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	taskEngine := task.New(task.Deps{})
	escrowEngine := escrow.New()
	trustEngine := trust.New(runner, trust.ConservativeStats{}, 64)
	e := dispute.New(taskEngine, escrowEngine, trustEngine)

	disputeID := storagetest.NewUUID()
	taskID := storagetest.NewUUID()
	escrowID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT can_resolve_disputes`).WillReturnRows(storagetest.BoolRow(true))
	mock.ExpectQuery(`SELECT .* FROM disputes WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(storagetest.DisputeRow(&postgres.Dispute{ID: disputeID, TaskID: taskID, EscrowID: escrowID, State: domain.DisputeUnderReview, Version: 2}))
	mock.ExpectQuery(`SELECT .* FROM escrows WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(storagetest.EscrowRow(&postgres.Escrow{ID: escrowID, TaskID: taskID, AmountCents: 10000, State: domain.EscrowLockedDispute, Version: 2}))

	_, err := e.Resolve(context.Background(), runner.DB(), dispute.ResolveParams{
		DisputeID: disputeID, ResolvedBy: storagetest.NewUUID(), Outcome: domain.OutcomeSplit,
	})
	require.Error(t, err)
	assert.True(t, hxerrors.IsCode(err, hxerrors.CodeValidation))
}

func TestResolve_SplitSumsToEscrowAmount(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	taskEngine := task.New(task.Deps{})
	escrowEngine := escrow.New()
	trustEngine := trust.New(runner, trust.ConservativeStats{}, 64)
	e := dispute.New(taskEngine, escrowEngine, trustEngine)

	disputeID := storagetest.NewUUID()
	taskID := storagetest.NewUUID()
	escrowID := storagetest.NewUUID()
	refund, release := int64(3000), int64(7000)
	outcome := domain.OutcomeSplit

	mock.ExpectQuery(`SELECT can_resolve_disputes`).WillReturnRows(storagetest.BoolRow(true))
	mock.ExpectQuery(`SELECT .* FROM disputes WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(storagetest.DisputeRow(&postgres.Dispute{ID: disputeID, TaskID: taskID, EscrowID: escrowID, State: domain.DisputeUnderReview, Version: 2}))
	mock.ExpectQuery(`SELECT .* FROM escrows WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(storagetest.EscrowRow(&postgres.Escrow{ID: escrowID, TaskID: taskID, AmountCents: 10000, State: domain.EscrowLockedDispute, Version: 2}))
	mock.ExpectQuery(`SELECT .* FROM escrows WHERE id = \$1`).
		WillReturnRows(storagetest.EscrowRow(&postgres.Escrow{ID: escrowID, TaskID: taskID, AmountCents: 10000, State: domain.EscrowLockedDispute, Version: 2}))
	mock.ExpectQuery(`UPDATE escrows SET state = 'REFUND_PARTIAL'`).
		WillReturnRows(storagetest.EscrowRow(&postgres.Escrow{ID: escrowID, TaskID: taskID, AmountCents: 10000, State: domain.EscrowRefundPartial,
			RefundAmountCents: &refund, ReleaseAmountCents: &release, Version: 3}))
	mock.ExpectQuery(`INSERT INTO outbox`).
		WillReturnRows(storagetest.OutboxRow(&postgres.OutboxEvent{ID: storagetest.NewUUID()}))
	mock.ExpectQuery(`UPDATE disputes SET state = 'RESOLVED'`).
		WillReturnRows(storagetest.DisputeRow(&postgres.Dispute{ID: disputeID, TaskID: taskID, EscrowID: escrowID, State: domain.DisputeResolved,
			ResolutionOutcome: &outcome, RefundAmountCents: &refund, ReleaseAmountCents: &release, Version: 3}))
	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleDisputed, Version: 4}))
	mock.ExpectQuery(`UPDATE tasks SET lifecycle_state = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleCompleted, Version: 5}))
	mock.ExpectQuery(`INSERT INTO outbox`).
		WillReturnRows(storagetest.OutboxRow(&postgres.OutboxEvent{ID: storagetest.NewUUID()}))

	resolved, err := e.Resolve(context.Background(), runner.DB(), dispute.ResolveParams{
		DisputeID: disputeID, ResolvedBy: storagetest.NewUUID(), Outcome: domain.OutcomeSplit,
		RefundAmt: &refund, ReleaseAmt: &release,
	})
	require.NoError(t, err)
	require.NotNil(t, resolved.RefundAmountCents)
	require.NotNil(t, resolved.ReleaseAmountCents)
	assert.Equal(t, *resolved.RefundAmountCents+*resolved.ReleaseAmountCents, int64(10000))
}
