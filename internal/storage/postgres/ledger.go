package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/hustlexp/hustlexp-core/internal/domain"
	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

// XPLedgerRepository writes append-only xp_ledger rows. HX102 blocks
// DELETE/TRUNCATE at the database level; this repository never issues
// UPDATE, DELETE or TRUNCATE.
type XPLedgerRepository struct{}

func NewXPLedgerRepository() *XPLedgerRepository { return &XPLedgerRepository{} }

const xpLedgerColumns = `id, user_id, task_id, escrow_id, base_xp, effective_xp, xp_before, xp_after,
	streak_days_at_award, reason, created_at`

func scanXPLedgerEntry(row interface{ Scan(...any) error }) (*XPLedgerEntry, error) {
	var e XPLedgerEntry
	err := row.Scan(&e.ID, &e.UserID, &e.TaskID, &e.EscrowID, &e.BaseXP, &e.EffectiveXP, &e.XPBefore, &e.XPAfter,
		&e.StreakDaysAtAward, &e.Reason, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Append inserts an award row. The UNIQUE(user_id, task_id, escrow_id)
// constraint is the award-once guarantee (P6); a conflict means this task's
// XP was already awarded and the caller should treat it as a no-op, not an
// error.
func (r *XPLedgerRepository) Append(ctx context.Context, ex txrunner.Executor, userID, taskID, escrowID uuid.UUID, baseXP, effectiveXP int, xpBefore, xpAfter int64, streakDays int, reason string) (entry *XPLedgerEntry, alreadyAwarded bool, err error) {
	row := ex.QueryRowContext(ctx, `
		INSERT INTO xp_ledger (user_id, task_id, escrow_id, base_xp, effective_xp, xp_before, xp_after, streak_days_at_award, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, task_id, escrow_id) DO NOTHING
		RETURNING `+xpLedgerColumns,
		userID, taskID, escrowID, baseXP, effectiveXP, xpBefore, xpAfter, streakDays, reason)
	e, err := scanXPLedgerEntry(row)
	if err == sql.ErrNoRows {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, wrapDBError("xp_ledger.Append", err)
	}
	return e, false, nil
}

// HasAwarded reports whether this task/escrow pair already has an XP entry
// for the user, mirroring the UNIQUE constraint for a cheap pre-flight check.
func (r *XPLedgerRepository) HasAwarded(ctx context.Context, ex txrunner.Executor, userID, taskID, escrowID uuid.UUID) (bool, error) {
	var exists bool
	err := ex.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM xp_ledger WHERE user_id = $1 AND task_id = $2 AND escrow_id = $3)`,
		userID, taskID, escrowID).Scan(&exists)
	if err != nil {
		return false, wrapDBError("xp_ledger.HasAwarded", err)
	}
	return exists, nil
}

// BadgeRepository writes append-only badge grants.
type BadgeRepository struct{}

func NewBadgeRepository() *BadgeRepository { return &BadgeRepository{} }

// Grant inserts a badge row. Badges are not deduplicated at the database
// level; callers that must grant a badge at most once should check
// HasBadge first within the same transaction.
func (r *BadgeRepository) Grant(ctx context.Context, ex txrunner.Executor, userID uuid.UUID, badgeType string, metadata []byte) (*Badge, error) {
	row := ex.QueryRowContext(ctx, `
		INSERT INTO badges (user_id, badge_type, metadata) VALUES ($1, $2, $3)
		RETURNING id, user_id, badge_type, metadata, awarded_at`, userID, badgeType, metadata)
	var b Badge
	if err := row.Scan(&b.ID, &b.UserID, &b.BadgeType, &b.Metadata, &b.AwardedAt); err != nil {
		return nil, wrapDBError("badges.Grant", err)
	}
	return &b, nil
}

// HasBadge reports whether a user already holds a badge of the given type.
func (r *BadgeRepository) HasBadge(ctx context.Context, ex txrunner.Executor, userID uuid.UUID, badgeType string) (bool, error) {
	var exists bool
	err := ex.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM badges WHERE user_id = $1 AND badge_type = $2)`, userID, badgeType,
	).Scan(&exists)
	if err != nil {
		return false, wrapDBError("badges.HasBadge", err)
	}
	return exists, nil
}

// TrustLedgerRepository writes append-only tier-change history, the audit
// trail behind every promotion/demotion (§4.6). No database trigger guards
// trust_ledger: append-only holds because this repository never issues
// UPDATE or DELETE, and the UNIQUE idempotency_key constraint rejects a
// repeated write.
type TrustLedgerRepository struct{}

func NewTrustLedgerRepository() *TrustLedgerRepository { return &TrustLedgerRepository{} }

// Append inserts a tier-change entry. A conflict on idempotency_key means
// this exact transition was already recorded; the caller treats it as a
// no-op rather than an error.
func (r *TrustLedgerRepository) Append(ctx context.Context, ex txrunner.Executor, userID uuid.UUID, before, after domain.TrustTier, source, idempotencyKey string) (entry *TrustLedgerEntry, alreadyRecorded bool, err error) {
	row := ex.QueryRowContext(ctx, `
		INSERT INTO trust_ledger (user_id, before_tier, after_tier, source, idempotency_key)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id, user_id, before_tier, after_tier, source, idempotency_key, created_at`,
		userID, before, after, source, idempotencyKey)
	var e TrustLedgerEntry
	err = row.Scan(&e.ID, &e.UserID, &e.BeforeTier, &e.AfterTier, &e.Source, &e.IdempotencyKey, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, wrapDBError("trust_ledger.Append", err)
	}
	return &e, false, nil
}

// ListForUser returns a user's full tier-change history, oldest first.
func (r *TrustLedgerRepository) ListForUser(ctx context.Context, ex txrunner.Executor, userID uuid.UUID) ([]*TrustLedgerEntry, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, user_id, before_tier, after_tier, source, idempotency_key, created_at
		FROM trust_ledger WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, wrapDBError("trust_ledger.ListForUser", err)
	}
	defer rows.Close()

	var out []*TrustLedgerEntry
	for rows.Next() {
		var e TrustLedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.BeforeTier, &e.AfterTier, &e.Source, &e.IdempotencyKey, &e.CreatedAt); err != nil {
			return nil, wrapDBError("trust_ledger.ListForUser", err)
		}
		out = append(out, &e)
	}
	return out, wrapDBErrorIfAny("trust_ledger.ListForUser", rows.Err())
}

// CountSinceBySource counts a user's trust_ledger entries with the given
// source recorded within the last window. Used by dispute resolution's
// "two poster penalties within 30 days" repeat-offender check (§4.7).
func (r *TrustLedgerRepository) CountSinceBySource(ctx context.Context, ex txrunner.Executor, userID uuid.UUID, source string, window time.Duration) (int, error) {
	var n int
	err := ex.QueryRowContext(ctx,
		`SELECT count(*) FROM trust_ledger WHERE user_id = $1 AND source = $2 AND created_at >= now() - $3::interval`,
		userID, source, window.String(),
	).Scan(&n)
	if err != nil {
		return 0, wrapDBError("trust_ledger.CountSinceBySource", err)
	}
	return n, nil
}

// RevenueLedgerRepository writes append-only platform-revenue rows,
// including chargeback entries (HX701/HX702).
type RevenueLedgerRepository struct{}

func NewRevenueLedgerRepository() *RevenueLedgerRepository { return &RevenueLedgerRepository{} }

// Append inserts a revenue entry (fee, chargeback debit, tax collection, etc).
func (r *RevenueLedgerRepository) Append(ctx context.Context, ex txrunner.Executor, taskID, escrowID *uuid.UUID, entryType string, amountCents int64) (*RevenueLedgerEntry, error) {
	row := ex.QueryRowContext(ctx, `
		INSERT INTO revenue_ledger (task_id, escrow_id, entry_type, amount_cents) VALUES ($1, $2, $3, $4)
		RETURNING id, task_id, escrow_id, entry_type, amount_cents, created_at`,
		taskID, escrowID, entryType, amountCents)
	var e RevenueLedgerEntry
	if err := row.Scan(&e.ID, &e.TaskID, &e.EscrowID, &e.EntryType, &e.AmountCents, &e.CreatedAt); err != nil {
		return nil, wrapDBError("revenue_ledger.Append", err)
	}
	return &e, nil
}

// XPTaxRepository writes append-only xp_tax_ledger rows and maintains the
// per-user running-balance projection in user_xp_tax_status (§4.8).
type XPTaxRepository struct{}

func NewXPTaxRepository() *XPTaxRepository { return &XPTaxRepository{} }

// RecordTax inserts a tax-owed entry for an offline-paid task and upserts
// the user's running unpaid-balance projection in the same call. Both
// writes must happen inside the same caller-managed transaction as the
// completion that triggered them.
func (r *XPTaxRepository) RecordTax(ctx context.Context, ex txrunner.Executor, userID, taskID uuid.UUID, grossAmountCents, taxAmountCents int64) (*XPTaxEntry, error) {
	row := ex.QueryRowContext(ctx, `
		INSERT INTO xp_tax_ledger (user_id, task_id, gross_amount_cents, tax_amount_cents)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, task_id, gross_amount_cents, tax_amount_cents, xp_held_back, tax_paid, paid_at, created_at`,
		userID, taskID, grossAmountCents, taxAmountCents)
	var e XPTaxEntry
	if err := row.Scan(&e.ID, &e.UserID, &e.TaskID, &e.GrossAmountCents, &e.TaxAmountCents, &e.XPHeldBack, &e.TaxPaid, &e.PaidAt, &e.CreatedAt); err != nil {
		return nil, wrapDBError("xp_tax_ledger.RecordTax", err)
	}

	_, err := ex.ExecContext(ctx, `
		INSERT INTO user_xp_tax_status (user_id, total_unpaid_tax_cents, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET
			total_unpaid_tax_cents = user_xp_tax_status.total_unpaid_tax_cents + EXCLUDED.total_unpaid_tax_cents,
			updated_at = now()`,
		userID, taxAmountCents)
	if err != nil {
		return nil, wrapDBError("xp_tax_ledger.RecordTax", err)
	}
	return &e, nil
}

// MarkPaid flips an unpaid tax entry's xp_held_back/tax_paid flags and
// decrements the user's running balance, releasing the held-back XP
// (§4.8's payTax operation).
func (r *XPTaxRepository) MarkPaid(ctx context.Context, ex txrunner.Executor, id uuid.UUID) (*XPTaxEntry, error) {
	row := ex.QueryRowContext(ctx, `
		UPDATE xp_tax_ledger SET tax_paid = TRUE, xp_held_back = FALSE, paid_at = now()
		WHERE id = $1 AND tax_paid = FALSE
		RETURNING id, user_id, task_id, gross_amount_cents, tax_amount_cents, xp_held_back, tax_paid, paid_at, created_at`,
		id)
	var e XPTaxEntry
	err := row.Scan(&e.ID, &e.UserID, &e.TaskID, &e.GrossAmountCents, &e.TaxAmountCents, &e.XPHeldBack, &e.TaxPaid, &e.PaidAt, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("xp_tax_ledger.MarkPaid", err)
	}

	_, err = ex.ExecContext(ctx, `
		UPDATE user_xp_tax_status SET total_unpaid_tax_cents = total_unpaid_tax_cents - $1, updated_at = now()
		WHERE user_id = $2`, e.TaxAmountCents, e.UserID)
	if err != nil {
		return nil, wrapDBError("xp_tax_ledger.MarkPaid", err)
	}
	return &e, nil
}

// ListUnpaidForUser returns a user's unpaid tax entries, oldest first.
func (r *XPTaxRepository) ListUnpaidForUser(ctx context.Context, ex txrunner.Executor, userID uuid.UUID) ([]*XPTaxEntry, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, user_id, task_id, gross_amount_cents, tax_amount_cents, xp_held_back, tax_paid, paid_at, created_at
		FROM xp_tax_ledger WHERE user_id = $1 AND tax_paid = FALSE ORDER BY created_at`, userID)
	if err != nil {
		return nil, wrapDBError("xp_tax_ledger.ListUnpaidForUser", err)
	}
	defer rows.Close()

	var out []*XPTaxEntry
	for rows.Next() {
		var e XPTaxEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.TaskID, &e.GrossAmountCents, &e.TaxAmountCents, &e.XPHeldBack, &e.TaxPaid, &e.PaidAt, &e.CreatedAt); err != nil {
			return nil, wrapDBError("xp_tax_ledger.ListUnpaidForUser", err)
		}
		out = append(out, &e)
	}
	return out, wrapDBErrorIfAny("xp_tax_ledger.ListUnpaidForUser", rows.Err())
}

// GetStatus fetches a user's running unpaid-tax balance, if any row exists.
func (r *XPTaxRepository) GetStatus(ctx context.Context, ex txrunner.Executor, userID uuid.UUID) (*UserXPTaxStatus, error) {
	row := ex.QueryRowContext(ctx, `SELECT user_id, total_unpaid_tax_cents, updated_at FROM user_xp_tax_status WHERE user_id = $1`, userID)
	var s UserXPTaxStatus
	err := row.Scan(&s.UserID, &s.TotalUnpaidTaxCents, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewNotFoundError("user_xp_tax_status", userID)
	}
	if err != nil {
		return nil, wrapDBError("user_xp_tax_status.GetStatus", err)
	}
	return &s, nil
}
