// Package capability implements the Recompute service (§3, §4.9): the sole
// writer of capability_profiles and verified_trades. Every other consumer
// reads these projections; nothing else may write them.
package capability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hustlexp/hustlexp-core/internal/logging"
	"github.com/hustlexp/hustlexp-core/internal/storage/postgres"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

const insuranceTradeType = "insurance"

// Engine recomputes and persists a user's capability projection.
type Engine struct {
	repo  *postgres.CapabilityRepository
	users *postgres.UserRepository
	log   *logging.Logger
}

func New() *Engine {
	return &Engine{
		repo:  postgres.NewCapabilityRepository(),
		users: postgres.NewUserRepository(),
		log:   logging.GetDefault().Component("capability"),
	}
}

// RecordVerification inserts a verified-trade row (e.g. a license or
// insurance check clearing) and immediately recomputes the user's
// capability projection in the same transaction, so the projection never
// observes a verification fact without reflecting it.
func (e *Engine) RecordVerification(ctx context.Context, ex txrunner.Executor, userID uuid.UUID, tradeType string, expiresAt *time.Time) (*postgres.VerifiedTrade, error) {
	trade, err := e.repo.RecordVerifiedTrade(ctx, ex, userID, tradeType, expiresAt)
	if err != nil {
		return nil, err
	}
	if _, err := e.recompute(ctx, ex, userID); err != nil {
		return nil, err
	}
	return trade, nil
}

// Recompute derives and upserts a user's capability_profiles row from the
// user's current trust tier and active verified trades. This is the only
// path by which that row ever changes.
func (e *Engine) Recompute(ctx context.Context, ex txrunner.Executor, userID uuid.UUID) (*postgres.CapabilityProfile, error) {
	return e.recompute(ctx, ex, userID)
}

func (e *Engine) recompute(ctx context.Context, ex txrunner.Executor, userID uuid.UUID) (*postgres.CapabilityProfile, error) {
	user, err := e.users.Get(ctx, ex, userID)
	if err != nil {
		return nil, err
	}
	trades, err := e.repo.ListActiveTradesForUser(ctx, ex, userID)
	if err != nil {
		return nil, err
	}

	var insuranceValidUntil *time.Time
	for _, t := range trades {
		if t.TradeType != insuranceTradeType {
			continue
		}
		if insuranceValidUntil == nil || (t.ExpiresAt != nil && t.ExpiresAt.After(*insuranceValidUntil)) {
			insuranceValidUntil = t.ExpiresAt
		}
	}

	profile, err := e.repo.UpsertProfile(ctx, ex, userID, user.TrustTier, insuranceValidUntil)
	if err != nil {
		return nil, err
	}
	e.log.Debug("capability profile recomputed", "user_id", userID, "trust_tier", user.TrustTier)
	return profile, nil
}
