// Package trust implements the Trust & Eligibility Authority (§4.6):
// assertEligibility is the only correct way for any other engine to decide
// whether a user may touch a task, trust-tier promotion, bans, and holds.
package trust

import (
	"context"

	"github.com/google/uuid"

	"github.com/hustlexp/hustlexp-core/internal/domain"
	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/logging"
	"github.com/hustlexp/hustlexp-core/internal/outbox"
	"github.com/hustlexp/hustlexp-core/internal/storage/postgres"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

const (
	EventTierChanged = "trust.tier_changed"
	EventUserBanned  = "trust.user_banned"
)

// Engine is the sole authority for eligibility, promotion, bans, and holds.
type Engine struct {
	users    *postgres.UserRepository
	tasks    *postgres.TaskRepository
	disputes *postgres.DisputeRepository
	admin    *postgres.AdminRoleRepository
	ledger   *postgres.TrustLedgerRepository
	outbox   *outbox.Writer
	runner   *txrunner.Runner
	cache    *decisionCache
	stats    StatsProvider
	log      *logging.Logger
}

// New constructs a trust Engine. stats supplies the promotion-threshold
// inputs this package cannot derive from the core schema alone (on-time
// ratio, distinct-poster count, security-deposit status). runner backs the
// PenaltySink's self-contained transaction (outbox.Sink.Dispatch is not
// handed a caller transaction, §4.2).
func New(runner *txrunner.Runner, stats StatsProvider, cacheSize int) *Engine {
	return &Engine{
		users:    postgres.NewUserRepository(),
		tasks:    postgres.NewTaskRepository(),
		disputes: postgres.NewDisputeRepository(),
		admin:    postgres.NewAdminRoleRepository(),
		ledger:   postgres.NewTrustLedgerRepository(),
		outbox:   outbox.NewWriter(),
		runner:   runner,
		cache:    newDecisionCache(cacheSize),
		stats:    stats,
		log:      logging.GetDefault().Component("trust"),
	}
}

// EligibilityRequest carries the question assertEligibility answers.
type EligibilityRequest struct {
	UserID   uuid.UUID
	TaskID   uuid.UUID
	IsInstant bool
}

// AssertEligibility implements §4.6's steps 1-6 verbatim. It is the only
// function in this module any engine may call to decide eligibility; no
// caller re-derives tier/risk comparisons itself. isInstant is accepted but
// never used to bypass a gate (step 6: "instant mode does not bypass any
// risk gate") — it exists so callers don't need a separate code path, and
// so Task Engine's accept() can layer its own instant-only checks (min
// instant tier, kill switch, rate limit, trust_hold) on top without this
// function silently doing less work for instant tasks.
func (e *Engine) AssertEligibility(ctx context.Context, ex txrunner.Executor, req EligibilityRequest) error {
	if dec, ok := e.cache.get(req.UserID, req.TaskID); ok {
		if dec.Allowed {
			return nil
		}
		return hxerrors.NewAuthorityError(hxerrors.Code(dec.Code), dec.Reason)
	}

	user, err := e.users.Get(ctx, ex, req.UserID)
	if err != nil {
		return err
	}
	if user.Banned {
		denial := hxerrors.NewAuthorityError(hxerrors.CodeUserBanned, "user is banned")
		e.cache.put(req.UserID, req.TaskID, Decision{Allowed: false, Code: string(hxerrors.CodeUserBanned), Reason: denial.Message})
		return denial
	}

	task, err := e.tasks.Get(ctx, ex, req.TaskID)
	if err != nil {
		return err
	}
	if task.RiskTier.BlockedInAlpha() {
		denial := hxerrors.NewAuthorityError(hxerrors.CodeTaskRiskBlockedAlpha, "task risk tier is blocked in alpha")
		e.cache.put(req.UserID, req.TaskID, Decision{Allowed: false, Code: string(hxerrors.CodeTaskRiskBlockedAlpha), Reason: denial.Message})
		return denial
	}

	required := task.RiskTier.RequiredTier()
	if !user.TrustTier.AtLeast(required) {
		denial := hxerrors.NewAuthorityError(hxerrors.CodeTrustTierInsufficient, "trust tier insufficient for task risk").
			WithDetail("required_tier", required).WithDetail("user_tier", user.TrustTier)
		e.cache.put(req.UserID, req.TaskID, Decision{Allowed: false, Code: string(hxerrors.CodeTrustTierInsufficient), Reason: denial.Message})
		return denial
	}

	e.cache.put(req.UserID, req.TaskID, Decision{Allowed: true})
	return nil
}

// CanResolveDisputes reports whether userID holds the admin capability
// required by Dispute.Resolve (§4.7).
func (e *Engine) CanResolveDisputes(ctx context.Context, ex txrunner.Executor, userID uuid.UUID) (bool, error) {
	return e.admin.CanResolveDisputes(ctx, ex, userID)
}

// BanUser terminally bans a user and cancels their active non-terminal
// tasks (§4.6). Both effects happen in the caller's transaction.
func (e *Engine) BanUser(ctx context.Context, ex txrunner.Executor, userID uuid.UUID, reason string) error {
	user, err := e.users.GetForUpdate(ctx, ex, userID)
	if err != nil {
		return err
	}
	if user.Banned {
		return nil // idempotent: already banned
	}

	if _, err := e.users.Ban(ctx, ex, userID, reason, user.Version); err != nil {
		return err
	}

	active, err := e.tasks.ListActiveForOwner(ctx, ex, userID)
	if err != nil {
		return err
	}
	for _, t := range active {
		timestampColumn := cancelTimestampColumn(t.LifecycleState)
		if timestampColumn == "" {
			continue // not cancellable/expirable from its current state
		}
		if _, err := e.tasks.TransitionLifecycle(ctx, ex, t.ID, t.LifecycleState, domain.LifecycleCancelled, t.Version, timestampColumn); err != nil {
			return err
		}
	}

	e.cache.invalidateUser(userID)
	e.log.Info("user banned", "user_id", userID, "reason", reason, "cancelled_tasks", len(active))
	return nil
}

func cancelTimestampColumn(s domain.TaskLifecycleState) string {
	if domain.CanCancelOrExpire(s) {
		return "cancelled_at"
	}
	return ""
}

// SetTrustHold sets or clears a trust hold on a user, invalidating any
// cached eligibility decision for them.
func (e *Engine) SetTrustHold(ctx context.Context, ex txrunner.Executor, userID uuid.UUID, held bool, reason string, untilVersion int) error {
	user, err := e.users.GetForUpdate(ctx, ex, userID)
	if err != nil {
		return err
	}
	if _, err := e.users.SetTrustHold(ctx, ex, userID, held, reason, nil, user.Version); err != nil {
		return err
	}
	e.cache.invalidateUser(userID)
	return nil
}

// HasTrustHold reports whether a non-LOW-risk creation/acceptance should be
// blocked by an active trust_hold (§4.6), checked by the Task Engine before
// its atomic UPDATE.
func (e *Engine) HasTrustHold(ctx context.Context, ex txrunner.Executor, userID uuid.UUID) (bool, error) {
	user, err := e.users.Get(ctx, ex, userID)
	if err != nil {
		return false, err
	}
	return user.TrustHold, nil
}
