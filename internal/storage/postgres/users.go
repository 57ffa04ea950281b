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

// UserRepository reads and writes the users table. Every method accepts a
// txrunner.Executor so callers can run it against the pool directly or
// against a bound transaction, matching the teacher's executor pattern.
type UserRepository struct{}

func NewUserRepository() *UserRepository { return &UserRepository{} }

const userColumns = `id, email, role_hint, trust_tier, banned, ban_reason, trust_hold, trust_hold_reason,
	trust_hold_until, payouts_locked, payouts_locked_reason, payouts_locked_at, plan, plan_subscribed_at,
	plan_expires_at, phone_verified, payment_method_verified, id_verified, xp_total, current_streak_days,
	recurring_series_count, version, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.RoleHint, &u.TrustTier, &u.Banned, &u.BanReason, &u.TrustHold, &u.TrustHoldReason,
		&u.TrustHoldUntil, &u.PayoutsLocked, &u.PayoutsLockedReason, &u.PayoutsLockedAt, &u.Plan, &u.PlanSubscribedAt,
		&u.PlanExpiresAt, &u.PhoneVerified, &u.PaymentMethodVerified, &u.IDVerified, &u.XPTotal, &u.CurrentStreakDays,
		&u.RecurringSeriesCount, &u.Version, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Get fetches a user by id.
func (r *UserRepository) Get(ctx context.Context, ex txrunner.Executor, id uuid.UUID) (*User, error) {
	row := ex.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewNotFoundError("user", id)
	}
	if err != nil {
		return nil, wrapDBError("users.Get", err)
	}
	return u, nil
}

// GetForUpdate fetches a user with a row lock, for callers about to mutate
// trust/hold/payout fields inside a transaction (§5 pessimistic locking).
func (r *UserRepository) GetForUpdate(ctx context.Context, ex txrunner.Executor, id uuid.UUID) (*User, error) {
	row := ex.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewNotFoundError("user", id)
	}
	if err != nil {
		return nil, wrapDBError("users.GetForUpdate", err)
	}
	return u, nil
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, ex txrunner.Executor, email, roleHint string) (*User, error) {
	row := ex.QueryRowContext(ctx, `
		INSERT INTO users (email, role_hint) VALUES ($1, $2)
		RETURNING `+userColumns, email, roleHint)
	u, err := scanUser(row)
	if err != nil {
		return nil, wrapDBError("users.Create", err)
	}
	return u, nil
}

// UpdateTrustTier performs the only sanctioned write path for a user's
// trust_tier, guarded by optimistic concurrency.
func (r *UserRepository) UpdateTrustTier(ctx context.Context, ex txrunner.Executor, id uuid.UUID, newTier domain.TrustTier, expectedVersion int) (*User, error) {
	row := ex.QueryRowContext(ctx, `
		UPDATE users SET trust_tier = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
		RETURNING `+userColumns, newTier, id, expectedVersion)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewConflictError(hxerrors.CodeAlreadyExists, "user version changed during update", nil)
	}
	if err != nil {
		return nil, wrapDBError("users.UpdateTrustTier", err)
	}
	return u, nil
}

// Ban sets banned = true, terminal and irreversible through this repository.
func (r *UserRepository) Ban(ctx context.Context, ex txrunner.Executor, id uuid.UUID, reason string, expectedVersion int) (*User, error) {
	row := ex.QueryRowContext(ctx, `
		UPDATE users SET banned = TRUE, ban_reason = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
		RETURNING `+userColumns, reason, id, expectedVersion)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewConflictError(hxerrors.CodeAlreadyExists, "user version changed during update", nil)
	}
	if err != nil {
		return nil, wrapDBError("users.Ban", err)
	}
	return u, nil
}

// SetTrustHold sets or clears a trust hold on the user. until may be nil.
func (r *UserRepository) SetTrustHold(ctx context.Context, ex txrunner.Executor, id uuid.UUID, held bool, reason string, until *time.Time, expectedVersion int) (*User, error) {
	row := ex.QueryRowContext(ctx, `
		UPDATE users SET trust_hold = $1, trust_hold_reason = $2, trust_hold_until = $3,
			version = version + 1, updated_at = now()
		WHERE id = $4 AND version = $5
		RETURNING `+userColumns, held, reason, until, id, expectedVersion)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewConflictError(hxerrors.CodeAlreadyExists, "user version changed during update", nil)
	}
	if err != nil {
		return nil, wrapDBError("users.SetTrustHold", err)
	}
	return u, nil
}

// SetPayoutsLocked locks or unlocks a worker's payouts (checked by HX801 on escrow release).
func (r *UserRepository) SetPayoutsLocked(ctx context.Context, ex txrunner.Executor, id uuid.UUID, locked bool, reason string, expectedVersion int) (*User, error) {
	row := ex.QueryRowContext(ctx, `
		UPDATE users SET payouts_locked = $1, payouts_locked_reason = $2,
			payouts_locked_at = CASE WHEN $1 THEN now() ELSE NULL END,
			version = version + 1, updated_at = now()
		WHERE id = $3 AND version = $4
		RETURNING `+userColumns, locked, reason, id, expectedVersion)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewConflictError(hxerrors.CodeAlreadyExists, "user version changed during update", nil)
	}
	if err != nil {
		return nil, wrapDBError("users.SetPayoutsLocked", err)
	}
	return u, nil
}

// AddXP adds delta XP to the user's running total and returns the updated row.
func (r *UserRepository) AddXP(ctx context.Context, ex txrunner.Executor, id uuid.UUID, delta int64, expectedVersion int) (*User, error) {
	row := ex.QueryRowContext(ctx, `
		UPDATE users SET xp_total = xp_total + $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
		RETURNING `+userColumns, delta, id, expectedVersion)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewConflictError(hxerrors.CodeAlreadyExists, "user version changed during update", nil)
	}
	if err != nil {
		return nil, wrapDBError("users.AddXP", err)
	}
	return u, nil
}

// IncrementRecurringSeriesCount bumps the denormalized counter used for
// quick eligibility pre-checks before the HX501 trigger has the final say.
func (r *UserRepository) IncrementRecurringSeriesCount(ctx context.Context, ex txrunner.Executor, id uuid.UUID) error {
	_, err := ex.ExecContext(ctx, `UPDATE users SET recurring_series_count = recurring_series_count + 1 WHERE id = $1`, id)
	if err != nil {
		return wrapDBError("users.IncrementRecurringSeriesCount", err)
	}
	return nil
}
