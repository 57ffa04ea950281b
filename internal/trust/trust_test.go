package trust

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hustlexp/hustlexp-core/internal/domain"
	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/storage/postgres"
	"github.com/hustlexp/hustlexp-core/internal/storagetest"
)

func TestAssertEligibility_DeniesBannedUser(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := New(runner, ConservativeStats{}, 64)
	userID, taskID := storagetest.NewUUID(), storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WillReturnRows(storagetest.UserRow(&postgres.User{ID: userID, TrustTier: domain.TierRookie, Banned: true}))

	err := e.AssertEligibility(context.Background(), runner.DB(), EligibilityRequest{UserID: userID, TaskID: taskID})
	require.Error(t, err)
	assert.True(t, hxerrors.IsCode(err, hxerrors.CodeUserBanned))
}

func TestAssertEligibility_DeniesBlockedRiskTier(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := New(runner, ConservativeStats{}, 64)
	userID, taskID := storagetest.NewUUID(), storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WillReturnRows(storagetest.UserRow(&postgres.User{ID: userID, TrustTier: domain.TierElite}))
	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, RiskTier: domain.RiskTier3}))

	err := e.AssertEligibility(context.Background(), runner.DB(), EligibilityRequest{UserID: userID, TaskID: taskID})
	require.Error(t, err)
	assert.True(t, hxerrors.IsCode(err, hxerrors.CodeTaskRiskBlockedAlpha))
}

func TestAssertEligibility_DeniesInsufficientTier(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := New(runner, ConservativeStats{}, 64)
	userID, taskID := storagetest.NewUUID(), storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WillReturnRows(storagetest.UserRow(&postgres.User{ID: userID, TrustTier: domain.TierRookie}))
	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, RiskTier: domain.RiskTier0}))

	err := e.AssertEligibility(context.Background(), runner.DB(), EligibilityRequest{UserID: userID, TaskID: taskID})
	require.Error(t, err)
	assert.True(t, hxerrors.IsCode(err, hxerrors.CodeTrustTierInsufficient))
}

func TestAssertEligibility_AllowsAndCachesDecision(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := New(runner, ConservativeStats{}, 64)
	userID, taskID := storagetest.NewUUID(), storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WillReturnRows(storagetest.UserRow(&postgres.User{ID: userID, TrustTier: domain.TierVerified}))
	mock.ExpectQuery(`SELECT .* FROM tasks WHERE id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: taskID, RiskTier: domain.RiskTier0}))

	req := EligibilityRequest{UserID: userID, TaskID: taskID}
	require.NoError(t, e.AssertEligibility(context.Background(), runner.DB(), req))

	// second call hits the decision cache: no further queries expected.
	require.NoError(t, e.AssertEligibility(context.Background(), runner.DB(), req))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCanResolveDisputes_ReadsAdminRole(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := New(runner, ConservativeStats{}, 64)
	userID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT can_resolve_disputes`).WillReturnRows(storagetest.BoolRow(true))

	ok, err := e.CanResolveDisputes(context.Background(), runner.DB(), userID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestApplyPromotion_RoutineVerifiedPromotionWritesLedgerAndOutbox(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := New(runner, ConservativeStats{}, 64)
	userID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(storagetest.UserRow(&postgres.User{
			ID: userID, TrustTier: domain.TierRookie, IDVerified: true, PhoneVerified: true,
			PaymentMethodVerified: true, Version: 5,
		}))
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WillReturnRows(storagetest.UserRow(&postgres.User{
			ID: userID, TrustTier: domain.TierRookie, IDVerified: true, PhoneVerified: true,
			PaymentMethodVerified: true, Version: 5,
		}))
	mock.ExpectQuery(`UPDATE users SET trust_tier`).
		WillReturnRows(storagetest.UserRow(&postgres.User{ID: userID, TrustTier: domain.TierVerified, Version: 6}))
	mock.ExpectQuery(`INSERT INTO trust_ledger`).
		WillReturnRows(trustLedgerRow(userID, domain.TierRookie, domain.TierVerified))
	mock.ExpectQuery(`INSERT INTO outbox`).
		WillReturnRows(storagetest.OutboxRow(&postgres.OutboxEvent{ID: storagetest.NewUUID()}))

	err := e.ApplyPromotion(context.Background(), runner.DB(), userID, domain.TierVerified, "scheduled_review")
	require.NoError(t, err)
}

func TestApplyPromotion_RejectsWhenEligibilityNoLongerHolds(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := New(runner, ConservativeStats{}, 64)
	userID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(storagetest.UserRow(&postgres.User{ID: userID, TrustTier: domain.TierRookie, Version: 5}))
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WillReturnRows(storagetest.UserRow(&postgres.User{ID: userID, TrustTier: domain.TierRookie, Version: 5}))

	err := e.ApplyPromotion(context.Background(), runner.DB(), userID, domain.TierVerified, "scheduled_review")
	require.Error(t, err)
	assert.True(t, hxerrors.IsCode(err, hxerrors.CodeInvalidState))
}

func TestApplyPromotion_NoOpWhenAlreadyAtOrAboveTarget(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := New(runner, ConservativeStats{}, 64)
	userID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(storagetest.UserRow(&postgres.User{ID: userID, TrustTier: domain.TierTrusted, Version: 5}))

	err := e.ApplyPromotion(context.Background(), runner.DB(), userID, domain.TierVerified, "scheduled_review")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBanUser_CancelsActiveTasksOnce(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := New(runner, ConservativeStats{}, 64)
	userID := storagetest.NewUUID()
	openTaskID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(storagetest.UserRow(&postgres.User{ID: userID, TrustTier: domain.TierRookie, Banned: false, Version: 2}))
	mock.ExpectQuery(`UPDATE users SET banned = TRUE`).
		WillReturnRows(storagetest.UserRow(&postgres.User{ID: userID, TrustTier: domain.TierRookie, Banned: true, Version: 3}))
	mock.ExpectQuery(`SELECT .* FROM tasks WHERE owner_id = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: openTaskID, OwnerID: userID, LifecycleState: domain.LifecycleOpen, Version: 1}))
	mock.ExpectQuery(`UPDATE tasks SET lifecycle_state = \$1`).
		WillReturnRows(storagetest.TaskRow(&postgres.Task{ID: openTaskID, OwnerID: userID, LifecycleState: domain.LifecycleCancelled, Version: 2}))

	err := e.BanUser(context.Background(), runner.DB(), userID, "fraud")
	require.NoError(t, err)
}

func TestBanUser_AlreadyBannedIsNoOp(t *testing.T) {
	runner, mock := storagetest.NewMockRunner(t)
	e := New(runner, ConservativeStats{}, 64)
	userID := storagetest.NewUUID()

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(storagetest.UserRow(&postgres.User{ID: userID, Banned: true, Version: 4}))

	err := e.BanUser(context.Background(), runner.DB(), userID, "fraud")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func trustLedgerRow(userID uuid.UUID, before, after domain.TrustTier) *sqlmock.Rows {
	cols := []string{"id", "user_id", "before_tier", "after_tier", "source", "idempotency_key", "created_at"}
	return sqlmock.NewRows(cols).AddRow(
		storagetest.NewUUID(), userID, before, after, "scheduled_review",
		"trust.tier_changed:"+userID.String()+":6", storagetest.FixedNow(),
	)
}
