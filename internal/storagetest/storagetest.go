// Package storagetest provides an in-memory stand-in for the Postgres
// backend used by every engine's tests: a *sql.DB driven by a mock driver
// (go-sqlmock) wrapped in the production txrunner.Runner, plus row builders
// for the repository structs engines scan into. Tests set expectations in
// call order, drive the engine method under test, then assert the mock's
// expectations were met — no live database, no Postgres-only SQL syntax to
// translate for a test backend.
package storagetest

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/hustlexp/hustlexp-core/internal/storage/postgres"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

// NewMockRunner opens a sqlmock-backed *sql.DB and wraps it in a
// txrunner.Runner, so a test drives the exact BEGIN/fn/COMMIT-or-ROLLBACK
// path txrunner.WithTransaction runs in production. The query matcher is
// regexp-based: expectations only need to contain the distinguishing
// fragment of a statement, not its full text.
func NewMockRunner(t *testing.T) (*txrunner.Runner, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("storagetest: failed to open sqlmock database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return txrunner.New(db), mock
}

// ExpectBeginCommit registers the BEGIN a WithTransaction call opens its work
// with; the matching COMMIT is registered separately with ExpectCommit.
func ExpectBeginCommit(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
}

// ExpectCommit registers the COMMIT expected after a successful transaction body.
// Kept as a separate call (rather than folded into ExpectBeginCommit) since
// sqlmock expectations are consumed in the order fn's queries actually run.
func ExpectCommit(mock sqlmock.Sqlmock) {
	mock.ExpectCommit()
}

// ExpectRollback registers the ROLLBACK expected after a failing
// transaction body.
func ExpectRollback(mock sqlmock.Sqlmock) {
	mock.ExpectRollback()
}

// userCols/taskCols/etc. name columns arbitrarily: sqlmock matches rows by
// position against the Scan call, not by column name, so these only need
// to be the right count and order.

var userCols = []string{"id", "email", "role_hint", "trust_tier", "banned", "ban_reason", "trust_hold",
	"trust_hold_reason", "trust_hold_until", "payouts_locked", "payouts_locked_reason", "payouts_locked_at",
	"plan", "plan_subscribed_at", "plan_expires_at", "phone_verified", "payment_method_verified", "id_verified",
	"xp_total", "current_streak_days", "recurring_series_count", "version", "created_at", "updated_at"}

// UserRow builds a single-row result set matching userColumns' scan order
// in internal/storage/postgres/users.go. Callers fill in only the fields
// their scenario cares about; the rest default to their zero value.
func UserRow(u *postgres.User) *sqlmock.Rows {
	now := u.CreatedAt
	if now.IsZero() {
		now = fixedNow
	}
	return sqlmock.NewRows(userCols).AddRow(
		u.ID, u.Email, u.RoleHint, u.TrustTier, u.Banned, u.BanReason, u.TrustHold,
		u.TrustHoldReason, u.TrustHoldUntil, u.PayoutsLocked, u.PayoutsLockedReason, u.PayoutsLockedAt,
		u.Plan, u.PlanSubscribedAt, u.PlanExpiresAt, u.PhoneVerified, u.PaymentMethodVerified, u.IDVerified,
		u.XPTotal, u.CurrentStreakDays, u.RecurringSeriesCount, u.Version, now, now,
	)
}

var taskCols = []string{"id", "owner_id", "worker_id", "title", "description", "price_cents", "location",
	"category", "requires_proof", "risk_tier", "mode", "instant_mode", "sensitive", "lifecycle_state",
	"progress_state", "recurring_series_id", "accepted_at", "proof_submitted_at", "completed_at",
	"cancelled_at", "expired_at", "disputed_at", "version", "created_at", "updated_at"}

// TaskRow builds a single-row result set matching taskColumns' scan order
// in internal/storage/postgres/tasks.go.
func TaskRow(t *postgres.Task) *sqlmock.Rows {
	now := t.CreatedAt
	if now.IsZero() {
		now = fixedNow
	}
	return sqlmock.NewRows(taskCols).AddRow(
		t.ID, t.OwnerID, t.WorkerID, t.Title, t.Description, t.PriceCents, t.Location,
		t.Category, t.RequiresProof, t.RiskTier, t.Mode, t.InstantMode, t.Sensitive, t.LifecycleState,
		t.ProgressState, t.RecurringSeriesID, t.AcceptedAt, t.ProofSubmittedAt, t.CompletedAt,
		t.CancelledAt, t.ExpiredAt, t.DisputedAt, t.Version, now, now,
	)
}

var escrowCols = []string{"id", "task_id", "amount_cents", "state", "external_payment_intent_id",
	"external_transfer_id", "external_refund_id", "refund_amount_cents", "release_amount_cents",
	"version", "created_at", "updated_at"}

// EscrowRow builds a single-row result set matching escrowColumns' scan
// order in internal/storage/postgres/escrows.go.
func EscrowRow(e *postgres.Escrow) *sqlmock.Rows {
	now := e.CreatedAt
	if now.IsZero() {
		now = fixedNow
	}
	return sqlmock.NewRows(escrowCols).AddRow(
		e.ID, e.TaskID, e.AmountCents, e.State, e.ExternalPaymentIntentID,
		e.ExternalTransferID, e.ExternalRefundID, e.RefundAmountCents, e.ReleaseAmountCents,
		e.Version, now, now,
	)
}

var disputeCols = []string{"id", "task_id", "escrow_id", "initiated_by", "poster_id", "worker_id", "reason",
	"state", "evidence", "resolution_outcome", "resolved_by", "resolved_at", "refund_amount_cents",
	"release_amount_cents", "version", "created_at", "updated_at"}

// DisputeRow builds a single-row result set matching disputeColumns' scan
// order in internal/storage/postgres/disputes.go.
func DisputeRow(d *postgres.Dispute) *sqlmock.Rows {
	now := d.CreatedAt
	if now.IsZero() {
		now = fixedNow
	}
	evidence := d.Evidence
	if evidence == nil {
		evidence = []byte(`[]`)
	}
	return sqlmock.NewRows(disputeCols).AddRow(
		d.ID, d.TaskID, d.EscrowID, d.InitiatedBy, d.PosterID, d.WorkerID, d.Reason,
		d.State, evidence, d.ResolutionOutcome, d.ResolvedBy, d.ResolvedAt, d.RefundAmountCents,
		d.ReleaseAmountCents, d.Version, now, now,
	)
}

var proofCols = []string{"id", "task_id", "submitter_id", "state", "description", "media_url", "created_at", "updated_at"}

// ProofRow builds a single-row result set matching proofColumns' scan order
// in internal/storage/postgres/proofs.go.
func ProofRow(p *postgres.Proof) *sqlmock.Rows {
	now := p.CreatedAt
	if now.IsZero() {
		now = fixedNow
	}
	return sqlmock.NewRows(proofCols).AddRow(
		p.ID, p.TaskID, p.SubmitterID, p.State, p.Description, p.MediaURL, now, now,
	)
}

var outboxCols = []string{"id", "event_type", "aggregate_type", "aggregate_id", "event_version",
	"idempotency_key", "payload", "queue_name", "claimed_at", "dispatched_at", "attempts", "created_at"}

// OutboxRow builds a single-row result set matching outboxColumns' scan
// order in internal/storage/postgres/outbox.go.
func OutboxRow(e *postgres.OutboxEvent) *sqlmock.Rows {
	now := e.CreatedAt
	if now.IsZero() {
		now = fixedNow
	}
	return sqlmock.NewRows(outboxCols).AddRow(
		e.ID, e.EventType, e.AggregateType, e.AggregateID, e.EventVersion,
		e.IdempotencyKey, e.Payload, e.QueueName, e.ClaimedAt, e.DispatchedAt, e.Attempts, now,
	)
}

var paymentEventCols = []string{"external_id", "event_type", "payload", "claimed_at", "processed_at",
	"result", "error_message", "created_at"}

// PaymentEventRow builds a single-row result set matching
// paymentEventColumns' scan order in internal/storage/postgres/payment_events.go.
func PaymentEventRow(e *postgres.ExternalPaymentEvent) *sqlmock.Rows {
	now := e.CreatedAt
	if now.IsZero() {
		now = fixedNow
	}
	return sqlmock.NewRows(paymentEventCols).AddRow(
		e.ExternalID, e.EventType, e.Payload, e.ClaimedAt, e.ProcessedAt, e.Result, e.ErrorMessage, now,
	)
}

var xpTaxCols = []string{"id", "user_id", "task_id", "gross_amount_cents", "tax_amount_cents",
	"xp_held_back", "tax_paid", "paid_at", "created_at"}

// XPTaxRow builds a single-row result set matching the inline column list
// XPTaxRepository scans in internal/storage/postgres/ledger.go.
func XPTaxRow(e *postgres.XPTaxEntry) *sqlmock.Rows {
	now := e.CreatedAt
	if now.IsZero() {
		now = fixedNow
	}
	return sqlmock.NewRows(xpTaxCols).AddRow(
		e.ID, e.UserID, e.TaskID, e.GrossAmountCents, e.TaxAmountCents, e.XPHeldBack, e.TaxPaid, e.PaidAt, now,
	)
}

var xpLedgerCols = []string{"id", "user_id", "task_id", "escrow_id", "base_xp", "effective_xp",
	"xp_before", "xp_after", "streak_days_at_award", "reason", "created_at"}

// XPLedgerRow builds a single-row result set matching xpLedgerColumns' scan
// order in internal/storage/postgres/ledger.go.
func XPLedgerRow(e *postgres.XPLedgerEntry) *sqlmock.Rows {
	now := e.CreatedAt
	if now.IsZero() {
		now = fixedNow
	}
	return sqlmock.NewRows(xpLedgerCols).AddRow(
		e.ID, e.UserID, e.TaskID, e.EscrowID, e.BaseXP, e.EffectiveXP,
		e.XPBefore, e.XPAfter, e.StreakDaysAtAward, e.Reason, now,
	)
}

// BoolRow builds a single-row, single-column boolean result set for the
// SELECT EXISTS(...) and other single-boolean queries scattered across the
// postgres package (HasActiveForTask, HasAccepted, HasCompletedTier2PlusForWorker, ...).
func BoolRow(v bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"exists"}).AddRow(v)
}

// fixedNow stands in for now() in rows whose test doesn't care about the
// actual timestamp value, since Date.Now()-style nondeterminism has no
// place in a row a test asserts against.
var fixedNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// NewUUID is a small convenience so test tables don't each import uuid
// solely to generate ids.
func NewUUID() uuid.UUID { return uuid.New() }

// FixedNow exposes the deterministic timestamp row builders default to, so
// tests asserting on a row's CreatedAt/UpdatedAt don't need their own
// separate constant.
func FixedNow() time.Time { return fixedNow }
