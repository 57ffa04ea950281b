package task

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hustlexp/hustlexp-core/internal/domain"
	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/escrow"
	"github.com/hustlexp/hustlexp-core/internal/outbox"
	"github.com/hustlexp/hustlexp-core/internal/ratelimit"
	"github.com/hustlexp/hustlexp-core/internal/storage/postgres"
	"github.com/hustlexp/hustlexp-core/internal/storagetest"
	"github.com/hustlexp/hustlexp-core/internal/trust"
)

func TestNew_DefaultsMissingCollaborators(t *testing.T) {
	e := New(Deps{})

	assert.IsType(t, ratelimit.Noop{}, e.limiter)
	assert.IsType(t, AlwaysComplete{}, e.classifier)
	assert.IsType(t, DefaultPlanGate{}, e.planGate)
}

func TestNew_PreservesSuppliedCollaborators(t *testing.T) {
	lim := ratelimit.NewSlidingWindow(5, time.Minute, 4)
	e := New(Deps{Limiter: lim})

	assert.Same(t, lim, e.limiter)
}

// newTestEngine builds an Engine wired to the real postgres repositories, a
// real escrow.Engine, and (where a test needs it) a real trust.Engine, all
// sharing the same sqlmock-backed runner, so every method under test runs
// its actual production SQL against the mock rather than a stand-in.
func newTestEngine() *Engine {
	return &Engine{
		tasks:    postgres.NewTaskRepository(),
		proofs:   postgres.NewProofRepository(),
		series:   postgres.NewRecurringSeriesRepository(),
		users:    postgres.NewUserRepository(),
		disputes: postgres.NewDisputeRepository(),
		escrow:   escrow.New(),
		outbox:   outbox.NewWriter(),
	}
}

func TestSubmitProof_MovesAcceptedToProofSubmitted(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	taskID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleAccepted, Version: 1}))
	mock.ExpectQuery(`INSERT INTO proofs`).
		WillReturnRows(storagetest.ProofRow(&postgres.Proof{ID: storagetest.NewUUID(), TaskID: taskID, State: domain.ProofPending}))
	mock.ExpectQuery(`UPDATE tasks SET lifecycle_state = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleProofSubmitted, Version: 2}))

	updatedTask, proof, err := e.SubmitProof(context.Background(), runner.DB(), taskID, storagetest.NewUUID(), "done", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleProofSubmitted, updatedTask.LifecycleState)
	assert.Equal(t, domain.ProofPending, proof.State)
}

func TestComplete_RequiresAcceptedProofWhenRequired(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	taskID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleProofSubmitted, RequiresProof: true, Version: 2}))
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(storagetest.BoolRow(false))

	_, err := e.Complete(context.Background(), runner.DB(), taskID)
	require.Error(t, err)
	assert.True(t, hxerrors.IsCode(err, hxerrors.CodeHX301))
}

func TestComplete_MovesProofSubmittedToCompleted(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	taskID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleProofSubmitted, RequiresProof: false, Version: 2}))
	mock.ExpectQuery(`UPDATE tasks SET lifecycle_state = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleCompleted, Version: 3}))

	updated, err := e.Complete(context.Background(), runner.DB(), taskID)
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleCompleted, updated.LifecycleState)
}

func TestRejectProof_ReturnsTaskToAccepted(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	taskID := storagetest.NewUUID()
	proofID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleProofSubmitted, Version: 2}))
	mock.ExpectQuery(`UPDATE proofs SET state = 'REJECTED'`).
		WillReturnRows(storagetest.ProofRow(&postgres.Proof{ID: proofID, TaskID: taskID, State: domain.ProofRejected}))
	mock.ExpectQuery(`UPDATE tasks SET lifecycle_state = 'ACCEPTED'`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleAccepted, Version: 3}))

	updated, err := e.RejectProof(context.Background(), runner.DB(), taskID, proofID)
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleAccepted, updated.LifecycleState)
}

func TestOpenDispute_MovesProofSubmittedToDisputed(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	taskID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleProofSubmitted, Version: 2}))
	mock.ExpectQuery(`UPDATE tasks SET lifecycle_state = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleDisputed, Version: 3}))

	updated, err := e.OpenDispute(context.Background(), runner.DB(), taskID)
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleDisputed, updated.LifecycleState)
}

func TestResolveDispute_ReleaseMovesToCompleted(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	taskID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleDisputed, Version: 3}))
	mock.ExpectQuery(`UPDATE tasks SET lifecycle_state = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleCompleted, Version: 4}))

	updated, err := e.ResolveDispute(context.Background(), runner.DB(), taskID, domain.LifecycleCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleCompleted, updated.LifecycleState)
}

func TestResolveDispute_RefundMovesToCancelled(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	taskID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleDisputed, Version: 3}))
	mock.ExpectQuery(`UPDATE tasks SET lifecycle_state = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleCancelled, Version: 4}))

	updated, err := e.ResolveDispute(context.Background(), runner.DB(), taskID, domain.LifecycleCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleCancelled, updated.LifecycleState)
}

func TestCancel_AllowedFromOpen(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	taskID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleOpen, Version: 0}))
	mock.ExpectQuery(`UPDATE tasks SET lifecycle_state = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleCancelled, Version: 1}))

	updated, err := e.Cancel(context.Background(), runner.DB(), taskID)
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleCancelled, updated.LifecycleState)
}

func TestCancel_RejectedFromDisputed(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	taskID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleDisputed, Version: 3}))

	_, err := e.Cancel(context.Background(), runner.DB(), taskID)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpire_AllowedFromMatching(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	taskID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleMatching, Version: 0}))
	mock.ExpectQuery(`UPDATE tasks SET lifecycle_state = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleExpired, Version: 1}))

	updated, err := e.Expire(context.Background(), runner.DB(), taskID)
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleExpired, updated.LifecycleState)
}

func TestAdvanceProgress_IdempotentNoOp(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	taskID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, ProgressState: domain.ProgressAccepted, Version: 1}))

	updated, err := e.AdvanceProgress(context.Background(), runner.DB(), taskID, domain.ProgressAccepted, domain.ActorSystem)
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressAccepted, updated.ProgressState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceProgress_WrongActorRejected(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	taskID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, ProgressState: domain.ProgressAccepted, Version: 1}))

	_, err := e.AdvanceProgress(context.Background(), runner.DB(), taskID, domain.ProgressTraveling, domain.ActorSystem)
	require.Error(t, err)
	assert.True(t, hxerrors.IsCode(err, hxerrors.CodeForbidden))
}

func TestAdvanceProgress_FrozenByActiveDispute(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	taskID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, ProgressState: domain.ProgressAccepted, Version: 1}))
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(storagetest.BoolRow(true))

	_, err := e.AdvanceProgress(context.Background(), runner.DB(), taskID, domain.ProgressTraveling, domain.ActorWorker)
	require.Error(t, err)
}

func TestAdvanceProgress_FrozenByTerminalEscrow(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	taskID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, ProgressState: domain.ProgressAccepted, Version: 1}))
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(storagetest.BoolRow(false))
	mock.ExpectQuery(`SELECT .* FROM escrows WHERE task_id = \$1 FOR UPDATE`).
		WillReturnRows(storagetest.EscrowRow(&postgres.Escrow{ID: storagetest.NewUUID(), TaskID: taskID, AmountCents: 2500, State: domain.EscrowReleased, Version: 2}))

	_, err := e.AdvanceProgress(context.Background(), runner.DB(), taskID, domain.ProgressTraveling, domain.ActorWorker)
	require.Error(t, err)
}

func TestAdvanceProgress_ClosedFromCompletedEmitsOutboxEvent(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	taskID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, ProgressState: domain.ProgressCompleted, Version: 4}))
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(storagetest.BoolRow(false))
	mock.ExpectQuery(`UPDATE tasks SET progress_state = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, ProgressState: domain.ProgressClosed, Version: 5}))
	mock.ExpectQuery(`INSERT INTO outbox`).
		WillReturnRows(storagetest.OutboxRow(&postgres.OutboxEvent{ID: storagetest.NewUUID()}))

	updated, err := e.AdvanceProgress(context.Background(), runner.DB(), taskID, domain.ProgressClosed, domain.ActorSystem)
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressClosed, updated.ProgressState)
}

func TestAccept_HappyPath(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	e.trust = trust.New(runner, trust.ConservativeStats{}, 64)
	taskID := storagetest.NewUUID()
	workerID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleOpen, RiskTier: domain.RiskTier0, Version: 0}))
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WillReturnRows(storagetest.UserRow(&postgres.User{ID: workerID, TrustTier: domain.TierVerified}))
	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleOpen, RiskTier: domain.RiskTier0, Version: 0}))
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WillReturnRows(storagetest.UserRow(&postgres.User{ID: workerID, TrustTier: domain.TierVerified}))
	mock.ExpectQuery(`UPDATE tasks SET worker_id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, WorkerID: &workerID, LifecycleState: domain.LifecycleAccepted, Version: 1}))

	accepted, err := e.Accept(context.Background(), runner.DB(), taskID, workerID)
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleAccepted, accepted.LifecycleState)
}

func TestAccept_LostRaceReturnsConflict(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	e.trust = trust.New(runner, trust.ConservativeStats{}, 64)
	taskID := storagetest.NewUUID()
	workerID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleOpen, RiskTier: domain.RiskTier0, Version: 0}))
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WillReturnRows(storagetest.UserRow(&postgres.User{ID: workerID, TrustTier: domain.TierVerified}))
	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleOpen, RiskTier: domain.RiskTier0, Version: 0}))
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WillReturnRows(storagetest.UserRow(&postgres.User{ID: workerID, TrustTier: domain.TierVerified}))
	mock.ExpectQuery(`UPDATE tasks SET worker_id = \$1`).WillReturnError(sql.ErrNoRows)

	_, err := e.Accept(context.Background(), runner.DB(), taskID, workerID)
	require.Error(t, err)
	assert.True(t, hxerrors.IsCode(err, hxerrors.CodeInvalidState))
}

func TestAccept_EligibilityDeniedForInsufficientTier(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := newTestEngine()
	e.trust = trust.New(runner, trust.ConservativeStats{}, 64)
	taskID := storagetest.NewUUID()
	workerID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleOpen, RiskTier: domain.RiskTier2, Version: 0}))
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WillReturnRows(storagetest.UserRow(&postgres.User{ID: workerID, TrustTier: domain.TierRookie}))
	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, LifecycleState: domain.LifecycleOpen, RiskTier: domain.RiskTier2, Version: 0}))

	_, err := e.Accept(context.Background(), runner.DB(), taskID, workerID)
	require.Error(t, err)
	assert.True(t, hxerrors.IsCode(err, hxerrors.CodeTrustTierInsufficient))
}
