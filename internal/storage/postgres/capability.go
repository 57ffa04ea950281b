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

// CapabilityRepository reads and writes capability_profiles and
// verified_trades, the two projections the Recompute service is the sole
// writer of (§4.9). Every other consumer reads, never writes.
type CapabilityRepository struct{}

func NewCapabilityRepository() *CapabilityRepository { return &CapabilityRepository{} }

// UpsertProfile replaces a user's capability projection wholesale; the
// recompute job always derives the full row rather than patching fields.
func (r *CapabilityRepository) UpsertProfile(ctx context.Context, ex txrunner.Executor, userID uuid.UUID, tier domain.TrustTier, insuranceValidUntil *time.Time) (*CapabilityProfile, error) {
	row := ex.QueryRowContext(ctx, `
		INSERT INTO capability_profiles (user_id, trust_tier, insurance_valid_until, computed_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE SET
			trust_tier = EXCLUDED.trust_tier,
			insurance_valid_until = EXCLUDED.insurance_valid_until,
			computed_at = now()
		RETURNING user_id, trust_tier, insurance_valid_until, computed_at`, userID, tier, insuranceValidUntil)
	var p CapabilityProfile
	if err := row.Scan(&p.UserID, &p.TrustTier, &p.InsuranceValidUntil, &p.ComputedAt); err != nil {
		return nil, wrapDBError("capability_profiles.UpsertProfile", err)
	}
	return &p, nil
}

// GetProfile fetches a user's capability projection.
func (r *CapabilityRepository) GetProfile(ctx context.Context, ex txrunner.Executor, userID uuid.UUID) (*CapabilityProfile, error) {
	row := ex.QueryRowContext(ctx, `SELECT user_id, trust_tier, insurance_valid_until, computed_at FROM capability_profiles WHERE user_id = $1`, userID)
	var p CapabilityProfile
	err := row.Scan(&p.UserID, &p.TrustTier, &p.InsuranceValidUntil, &p.ComputedAt)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewNotFoundError("capability_profile", userID)
	}
	if err != nil {
		return nil, wrapDBError("capability_profiles.GetProfile", err)
	}
	return &p, nil
}

// RecordVerifiedTrade inserts a verified-trade projection row (e.g. a
// verified identity or payment-method check feeding eligibility rules).
func (r *CapabilityRepository) RecordVerifiedTrade(ctx context.Context, ex txrunner.Executor, userID uuid.UUID, tradeType string, expiresAt *time.Time) (*VerifiedTrade, error) {
	row := ex.QueryRowContext(ctx, `
		INSERT INTO verified_trades (user_id, trade_type, expires_at) VALUES ($1, $2, $3)
		RETURNING id, user_id, trade_type, verified_at, expires_at`, userID, tradeType, expiresAt)
	var v VerifiedTrade
	if err := row.Scan(&v.ID, &v.UserID, &v.TradeType, &v.VerifiedAt, &v.ExpiresAt); err != nil {
		return nil, wrapDBError("verified_trades.RecordVerifiedTrade", err)
	}
	return &v, nil
}

// ListActiveTradesForUser returns a user's verified trades that have not
// expired, used by the recompute job to derive capability flags.
func (r *CapabilityRepository) ListActiveTradesForUser(ctx context.Context, ex txrunner.Executor, userID uuid.UUID) ([]*VerifiedTrade, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, user_id, trade_type, verified_at, expires_at FROM verified_trades
		WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > now())
		ORDER BY verified_at`, userID)
	if err != nil {
		return nil, wrapDBError("verified_trades.ListActiveTradesForUser", err)
	}
	defer rows.Close()

	var out []*VerifiedTrade
	for rows.Next() {
		var v VerifiedTrade
		if err := rows.Scan(&v.ID, &v.UserID, &v.TradeType, &v.VerifiedAt, &v.ExpiresAt); err != nil {
			return nil, wrapDBError("verified_trades.ListActiveTradesForUser", err)
		}
		out = append(out, &v)
	}
	return out, wrapDBErrorIfAny("verified_trades.ListActiveTradesForUser", rows.Err())
}
