package trust

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hustlexp/hustlexp-core/internal/domain"
	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/outbox"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

// PromotionStats carries the promotion-threshold inputs that cannot be
// derived from the core schema covered by internal/storage/postgres alone
// (on-time delivery ratio, distinct-poster count, security-deposit status).
// Completed-task count, dispute count, and account age ARE derivable from
// existing repositories and are computed directly in EvaluatePromotion
// rather than delegated here.
type PromotionStats struct {
	OnTimeRatio           float64
	DistinctPosterCount   int
	SecurityDepositLocked bool
}

// StatsProvider supplies PromotionStats for a user, sourced outside this
// module's owned tables (e.g. a delivery-tracking or escrow/payments
// reporting service).
type StatsProvider interface {
	PromotionStats(ctx context.Context, userID uuid.UUID) (PromotionStats, error)
}

// ConservativeStats is a safe default StatsProvider for deployments that
// haven't wired the real delivery-tracking/reporting source yet: it always
// reports the least-favorable stats, so EvaluatePromotion never grants a
// TRUSTED/ELITE promotion on its account. Unlike a permissive no-op, this
// direction of default can't falsely promote anyone.
type ConservativeStats struct{}

func (ConservativeStats) PromotionStats(ctx context.Context, userID uuid.UUID) (PromotionStats, error) {
	return PromotionStats{}, nil
}

// PromotionEvaluation is evaluatePromotion's result: whether userID
// currently qualifies for the next tier up, and if not, why not.
type PromotionEvaluation struct {
	CurrentTier   domain.TrustTier
	NextTier      domain.TrustTier
	Eligible      bool
	MissingReasons []string
}

// EvaluatePromotion reports whether userID qualifies for the tier above
// their current one (§4.6). It performs no writes.
func (e *Engine) EvaluatePromotion(ctx context.Context, ex txrunner.Executor, userID uuid.UUID) (*PromotionEvaluation, error) {
	user, err := e.users.Get(ctx, ex, userID)
	if err != nil {
		return nil, err
	}

	next := nextTier(user.TrustTier)
	eval := &PromotionEvaluation{CurrentTier: user.TrustTier, NextTier: next}
	if next == user.TrustTier {
		eval.Eligible = false
		eval.MissingReasons = []string{"already at the highest promotable tier"}
		return eval, nil
	}

	var reasons []string
	switch next {
	case domain.TierVerified:
		if !user.IDVerified {
			reasons = append(reasons, "id not verified")
		}
		if !user.PhoneVerified {
			reasons = append(reasons, "phone not verified")
		}
		if !user.PaymentMethodVerified {
			reasons = append(reasons, "payment method not verified")
		}
	case domain.TierTrusted:
		completed, disputeFree, accountAgeDays, err := e.trustedTierInputs(ctx, ex, userID, user.CreatedAt)
		if err != nil {
			return nil, err
		}
		stats, err := e.stats.PromotionStats(ctx, userID)
		if err != nil {
			return nil, err
		}
		if completed < 10 {
			reasons = append(reasons, "fewer than 10 completed tasks")
		}
		if !disputeFree {
			reasons = append(reasons, "has at least one dispute")
		}
		if stats.OnTimeRatio < 0.95 {
			reasons = append(reasons, "on-time ratio below 95%")
		}
		if accountAgeDays < 7 {
			reasons = append(reasons, "account younger than 7 days")
		}
		hasTier2Plus, err := e.tasks.HasCompletedTier2PlusForWorker(ctx, ex, userID)
		if err != nil {
			return nil, err
		}
		if hasTier2Plus {
			reasons = append(reasons, "has completed a TIER_2 or higher task")
		}
	case domain.TierElite:
		completed, _, accountAgeDays, err := e.trustedTierInputs(ctx, ex, userID, user.CreatedAt)
		if err != nil {
			return nil, err
		}
		stats, err := e.stats.PromotionStats(ctx, userID)
		if err != nil {
			return nil, err
		}
		if completed < 25 {
			reasons = append(reasons, "fewer than 25 completed tasks")
		}
		if stats.DistinctPosterCount < 5 {
			reasons = append(reasons, "fewer than 5 distinct posters")
		}
		if accountAgeDays < 30 {
			reasons = append(reasons, "account younger than 30 days")
		}
		if !stats.SecurityDepositLocked {
			reasons = append(reasons, "security deposit not locked")
		}
	}

	eval.MissingReasons = reasons
	eval.Eligible = len(reasons) == 0
	return eval, nil
}

// trustedTierInputs computes the schema-derivable TRUSTED/ELITE inputs:
// completed task count, whether the worker has zero disputes, and account
// age in days.
func (e *Engine) trustedTierInputs(ctx context.Context, ex txrunner.Executor, userID uuid.UUID, createdAt time.Time) (completed int, disputeFree bool, accountAgeDays int, err error) {
	completed, err = e.tasks.CountCompletedForWorker(ctx, ex, userID)
	if err != nil {
		return 0, false, 0, err
	}
	disputeCount, err := e.disputes.CountForWorker(ctx, ex, userID)
	if err != nil {
		return 0, false, 0, err
	}
	accountAgeDays = int(time.Since(createdAt).Hours() / 24)
	return completed, disputeCount == 0, accountAgeDays, nil
}

func nextTier(t domain.TrustTier) domain.TrustTier {
	switch t {
	case domain.TierRookie:
		return domain.TierVerified
	case domain.TierVerified:
		return domain.TierTrusted
	case domain.TierTrusted:
		return domain.TierElite
	default:
		return t // ELITE and BANNED have no next tier
	}
}

// ApplyPromotion advances userID exactly one tier, re-validating inside the
// transaction (guarding against TOCTOU between EvaluatePromotion and the
// write) per §4.6. Idempotent: if userID is already at targetTier or
// beyond, this is a no-op.
func (e *Engine) ApplyPromotion(ctx context.Context, ex txrunner.Executor, userID uuid.UUID, targetTier domain.TrustTier, source string) error {
	user, err := e.users.GetForUpdate(ctx, ex, userID)
	if err != nil {
		return err
	}
	if user.TrustTier == domain.TierBanned {
		return hxerrors.NewStateError("banned user cannot be promoted")
	}
	if user.TrustTier.Rank() >= targetTier.Rank() {
		return nil // already there or past it
	}

	eval, err := e.EvaluatePromotion(ctx, ex, userID)
	if err != nil {
		return err
	}
	if eval.NextTier != targetTier || !eval.Eligible {
		return hxerrors.NewStateError("promotion eligibility no longer holds").
			WithDetail("reasons", eval.MissingReasons)
	}

	before := user.TrustTier
	if _, err := e.users.UpdateTrustTier(ctx, ex, userID, targetTier, user.Version); err != nil {
		return err
	}

	key := outbox.IdempotencyKey(EventTierChanged, userID, user.Version+1)
	entry, alreadyRecorded, err := e.ledger.Append(ctx, ex, userID, before, targetTier, source, key)
	if err != nil {
		return err
	}
	if !alreadyRecorded {
		if err := e.outbox.Write(ctx, ex, EventTierChanged, "user", userID, user.Version+1, key,
			[]byte(`{"user_id":"`+userID.String()+`","before":"`+string(before)+`","after":"`+string(targetTier)+`"}`),
			"user_notifications"); err != nil {
			return err
		}
		_ = entry
	}

	e.cache.invalidateUser(userID)
	return nil
}
