// Package task implements the Task Engine (§4.4): the two independent
// state machines (lifecycle, progress) on a task row, and every operation
// that drives them.
package task

import (
	"context"

	"github.com/google/uuid"

	"github.com/hustlexp/hustlexp-core/internal/domain"
	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/escrow"
	"github.com/hustlexp/hustlexp-core/internal/killswitch"
	"github.com/hustlexp/hustlexp-core/internal/logging"
	"github.com/hustlexp/hustlexp-core/internal/outbox"
	"github.com/hustlexp/hustlexp-core/internal/ratelimit"
	"github.com/hustlexp/hustlexp-core/internal/storage/postgres"
	"github.com/hustlexp/hustlexp-core/internal/trust"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

const EventProgressUpdated = "task.progress_updated"

// Config tunes instant-mode gating thresholds (§9: MIN_INSTANT_TIER /
// MIN_SENSITIVE_INSTANT_TIER).
type Config struct {
	MinInstantTier          domain.TrustTier
	MinSensitiveInstantTier domain.TrustTier
}

// Engine is the sole writer of task lifecycle/progress state.
type Engine struct {
	tasks      *postgres.TaskRepository
	proofs     *postgres.ProofRepository
	series     *postgres.RecurringSeriesRepository
	users      *postgres.UserRepository
	disputes   *postgres.DisputeRepository
	trust      *trust.Engine
	escrow     *escrow.Engine
	outbox     *outbox.Writer
	limiter    ratelimit.Limiter
	killswitch killswitch.Reader
	classifier CompletenessClassifier
	planGate   PlanGate
	cfg        Config
	log        *logging.Logger
}

// Deps groups Engine's collaborators for construction.
type Deps struct {
	Trust      *trust.Engine
	Escrow     *escrow.Engine
	Limiter    ratelimit.Limiter
	KillSwitch killswitch.Reader
	Classifier CompletenessClassifier
	PlanGate   PlanGate
	Config     Config
}

func New(d Deps) *Engine {
	if d.Limiter == nil {
		d.Limiter = ratelimit.Noop{}
	}
	if d.Classifier == nil {
		d.Classifier = AlwaysComplete{}
	}
	if d.PlanGate == nil {
		d.PlanGate = DefaultPlanGate{}
	}
	return &Engine{
		tasks:      postgres.NewTaskRepository(),
		proofs:     postgres.NewProofRepository(),
		series:     postgres.NewRecurringSeriesRepository(),
		users:      postgres.NewUserRepository(),
		disputes:   postgres.NewDisputeRepository(),
		trust:      d.Trust,
		escrow:     d.Escrow,
		outbox:     outbox.NewWriter(),
		limiter:    d.Limiter,
		killswitch: d.KillSwitch,
		classifier: d.Classifier,
		planGate:   d.PlanGate,
		cfg:        d.Config,
		log:        logging.GetDefault().Component("task"),
	}
}

// CreateParams groups Create's inputs (§4.4).
type CreateParams struct {
	OwnerID           uuid.UUID
	Title             string
	Description       string
	PriceCents        int64
	Location          string
	Category          string
	RequiresProof     bool
	RiskTier          domain.RiskTier
	Mode              domain.TaskMode
	InstantMode       bool
	Sensitive         bool
	RecurringSeriesID *uuid.UUID
}

// Create validates and inserts a new task. Initial lifecycle state is
// MATCHING if instant, else OPEN (§4.4).
func (e *Engine) Create(ctx context.Context, ex txrunner.Executor, p CreateParams) (*postgres.Task, error) {
	if p.PriceCents <= 0 {
		return nil, hxerrors.NewValidationError("price must be a positive integer", "price_cents", p.PriceCents)
	}
	if p.PriceCents < p.Mode.MinPriceCents() {
		return nil, hxerrors.NewValidationError("price below minimum for mode",
			"price_cents", p.PriceCents, "minimum", p.Mode.MinPriceCents(), "mode", p.Mode)
	}
	if p.RiskTier.BlockedInAlpha() {
		return nil, hxerrors.NewAuthorityError(hxerrors.CodeTaskRiskBlockedAlpha, "task risk tier is blocked in alpha")
	}

	owner, err := e.users.Get(ctx, ex, p.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner.Banned {
		return nil, hxerrors.NewAuthorityError(hxerrors.CodeUserBanned, "user is banned")
	}
	if owner.TrustHold && !p.RiskTier.IsLow() {
		return nil, hxerrors.NewAuthorityError(hxerrors.CodeForbidden, "trust hold blocks non-low-risk task creation")
	}
	if !e.planGate.Allows(owner.Plan, p.RiskTier) {
		return nil, hxerrors.NewAuthorityError(hxerrors.CodePlanRequired, "plan does not permit this risk tier",
			"plan", owner.Plan, "risk_tier", p.RiskTier)
	}

	if p.InstantMode {
		allowed, err := e.limiter.Allow(ctx, "instant_create:"+p.OwnerID.String())
		if err != nil {
			return nil, hxerrors.NewInternalError("rate limiter failure", err)
		}
		if !allowed {
			return nil, hxerrors.NewAuthorityError(hxerrors.CodeRateLimited, "instant task creation rate limit exceeded")
		}
		if e.killswitch != nil {
			engaged, err := e.killswitch.Engaged(ctx, "instant_mode")
			if err != nil {
				return nil, hxerrors.NewInternalError("kill switch read failure", err)
			}
			if engaged {
				return nil, hxerrors.NewAuthorityError(hxerrors.CodeKillSwitch, "instant mode is disabled")
			}
		}
		ok, reason, err := e.classifier.IsComplete(ctx, p.Title, p.Description, p.PriceCents)
		if err != nil {
			return nil, hxerrors.NewExternalError(hxerrors.CodeProcessorError, "completeness classifier failure", err)
		}
		if !ok {
			return nil, hxerrors.NewValidationError("task description incomplete for instant mode", "reason", reason)
		}
	}

	initial := domain.LifecycleOpen
	if p.InstantMode {
		initial = domain.LifecycleMatching
	}

	return e.tasks.Create(ctx, ex, postgres.CreateParams{
		OwnerID: p.OwnerID, Title: p.Title, Description: p.Description, PriceCents: p.PriceCents,
		Location: p.Location, Category: p.Category, RequiresProof: p.RequiresProof, RiskTier: p.RiskTier,
		Mode: p.Mode, InstantMode: p.InstantMode, Sensitive: p.Sensitive, LifecycleState: initial,
		RecurringSeriesID: p.RecurringSeriesID,
	})
}

// CreateRecurringSeries opens a new recurring series for an owner, subject
// to the per-owner limit enforced at the kernel (HX501).
func (e *Engine) CreateRecurringSeries(ctx context.Context, ex txrunner.Executor, ownerID uuid.UUID) (*postgres.RecurringSeries, error) {
	return e.series.Create(ctx, ex, ownerID)
}

// Accept assigns a worker to an OPEN/MATCHING task (§4.4). The eligibility
// guard and, for instant tasks, extra tier/kill-switch/rate-limit/hold
// checks all run before the atomic UPDATE; the UPDATE itself is the final
// race-resolver.
func (e *Engine) Accept(ctx context.Context, ex txrunner.Executor, taskID, workerID uuid.UUID) (*postgres.Task, error) {
	t, err := e.tasks.Get(ctx, ex, taskID)
	if err != nil {
		return nil, err
	}

	if err := e.trust.AssertEligibility(ctx, ex, trust.EligibilityRequest{UserID: workerID, TaskID: taskID, IsInstant: t.InstantMode}); err != nil {
		return nil, err
	}

	worker, err := e.users.Get(ctx, ex, workerID)
	if err != nil {
		return nil, err
	}
	if worker.TrustHold && !t.RiskTier.IsLow() {
		return nil, hxerrors.NewAuthorityError(hxerrors.CodeForbidden, "trust hold blocks non-low-risk task acceptance")
	}

	if t.InstantMode {
		minTier := e.cfg.MinInstantTier
		if t.Sensitive {
			minTier = e.cfg.MinSensitiveInstantTier
		}
		if !worker.TrustTier.AtLeast(minTier) {
			return nil, hxerrors.NewAuthorityError(hxerrors.CodeInstantTaskTrustInsufficient,
				"trust tier insufficient for instant task", "required_tier", minTier, "worker_tier", worker.TrustTier)
		}
		if e.killswitch != nil {
			engaged, err := e.killswitch.Engaged(ctx, "instant_mode")
			if err != nil {
				return nil, hxerrors.NewInternalError("kill switch read failure", err)
			}
			if engaged {
				return nil, hxerrors.NewAuthorityError(hxerrors.CodeKillSwitch, "instant mode is disabled")
			}
		}
		allowed, err := e.limiter.Allow(ctx, "instant_accept:"+workerID.String())
		if err != nil {
			return nil, hxerrors.NewInternalError("rate limiter failure", err)
		}
		if !allowed {
			return nil, hxerrors.NewAuthorityError(hxerrors.CodeRateLimited, "instant task acceptance rate limit exceeded")
		}
	}

	accepted, err := e.tasks.Accept(ctx, ex, taskID, workerID)
	if err != nil {
		return nil, err
	}
	if accepted == nil {
		return nil, hxerrors.NewConflictError(hxerrors.CodeInvalidState, "task already accepted or no longer open", nil)
	}
	return accepted, nil
}

// SubmitProof records a proof submission and moves ACCEPTED -> PROOF_SUBMITTED.
func (e *Engine) SubmitProof(ctx context.Context, ex txrunner.Executor, taskID, submitterID uuid.UUID, description string, mediaURL *string) (*postgres.Task, *postgres.Proof, error) {
	t, err := e.tasks.Get(ctx, ex, taskID)
	if err != nil {
		return nil, nil, err
	}
	proof, err := e.proofs.Create(ctx, ex, taskID, submitterID, description, mediaURL)
	if err != nil {
		return nil, nil, err
	}
	updated, err := e.tasks.TransitionLifecycle(ctx, ex, taskID, domain.LifecycleAccepted, domain.LifecycleProofSubmitted, t.Version, "proof_submitted_at")
	if err != nil {
		return nil, nil, err
	}
	if updated == nil {
		return nil, nil, hxerrors.NewConflictError(hxerrors.CodeInvalidState, "task version or state changed during update", nil)
	}
	return updated, proof, nil
}

// Complete moves PROOF_SUBMITTED -> COMPLETED. Fails with HX301 at the
// kernel if requires_proof is set and no proof has been ACCEPTED; this
// engine pre-checks with HasAccepted for a faster, friendlier failure.
func (e *Engine) Complete(ctx context.Context, ex txrunner.Executor, taskID uuid.UUID) (*postgres.Task, error) {
	t, err := e.tasks.Get(ctx, ex, taskID)
	if err != nil {
		return nil, err
	}
	if t.RequiresProof {
		hasAccepted, err := e.proofs.HasAccepted(ctx, ex, taskID)
		if err != nil {
			return nil, err
		}
		if !hasAccepted {
			return nil, hxerrors.NewInvariantError(hxerrors.CodeHX301, "task cannot complete without an accepted proof", nil)
		}
	}
	updated, err := e.tasks.TransitionLifecycle(ctx, ex, taskID, domain.LifecycleProofSubmitted, domain.LifecycleCompleted, t.Version, "completed_at")
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, hxerrors.NewConflictError(hxerrors.CodeInvalidState, "task version or state changed during update", nil)
	}
	return updated, nil
}

// RejectProof rejects the task's pending proof and returns the task to ACCEPTED.
func (e *Engine) RejectProof(ctx context.Context, ex txrunner.Executor, taskID, proofID uuid.UUID) (*postgres.Task, error) {
	t, err := e.tasks.Get(ctx, ex, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := e.proofs.Reject(ctx, ex, proofID); err != nil {
		return nil, err
	}
	updated, err := e.tasks.RejectProofReturnToAccepted(ctx, ex, taskID, t.Version)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, hxerrors.NewConflictError(hxerrors.CodeInvalidState, "task version or state changed during update", nil)
	}
	return updated, nil
}

// OpenDispute moves a task's lifecycle PROOF_SUBMITTED -> DISPUTED. The
// Dispute engine is the caller here, inside its own transaction alongside
// the dispute row creation and escrow lock.
func (e *Engine) OpenDispute(ctx context.Context, ex txrunner.Executor, taskID uuid.UUID) (*postgres.Task, error) {
	t, err := e.tasks.Get(ctx, ex, taskID)
	if err != nil {
		return nil, err
	}
	updated, err := e.tasks.TransitionLifecycle(ctx, ex, taskID, domain.LifecycleProofSubmitted, domain.LifecycleDisputed, t.Version, "disputed_at")
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, hxerrors.NewConflictError(hxerrors.CodeInvalidState, "task version or state changed during update", nil)
	}
	return updated, nil
}

// ResolveDispute moves DISPUTED -> COMPLETED or CANCELLED depending on outcome.
func (e *Engine) ResolveDispute(ctx context.Context, ex txrunner.Executor, taskID uuid.UUID, to domain.TaskLifecycleState) (*postgres.Task, error) {
	t, err := e.tasks.Get(ctx, ex, taskID)
	if err != nil {
		return nil, err
	}
	timestampColumn := "completed_at"
	if to == domain.LifecycleCancelled {
		timestampColumn = "cancelled_at"
	}
	updated, err := e.tasks.TransitionLifecycle(ctx, ex, taskID, domain.LifecycleDisputed, to, t.Version, timestampColumn)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, hxerrors.NewConflictError(hxerrors.CodeInvalidState, "task version or state changed during update", nil)
	}
	return updated, nil
}

// Cancel or Expire a task directly from a non-terminal, non-disputed state
// (§4.4's "always-legal escape").
func (e *Engine) Cancel(ctx context.Context, ex txrunner.Executor, taskID uuid.UUID) (*postgres.Task, error) {
	return e.cancelOrExpire(ctx, ex, taskID, domain.LifecycleCancelled, "cancelled_at")
}

func (e *Engine) Expire(ctx context.Context, ex txrunner.Executor, taskID uuid.UUID) (*postgres.Task, error) {
	return e.cancelOrExpire(ctx, ex, taskID, domain.LifecycleExpired, "expired_at")
}

func (e *Engine) cancelOrExpire(ctx context.Context, ex txrunner.Executor, taskID uuid.UUID, to domain.TaskLifecycleState, timestampColumn string) (*postgres.Task, error) {
	t, err := e.tasks.Get(ctx, ex, taskID)
	if err != nil {
		return nil, err
	}
	if !domain.CanCancelOrExpire(t.LifecycleState) {
		return nil, hxerrors.NewStateError("task cannot be cancelled or expired from its current state", "lifecycle_state", t.LifecycleState)
	}
	updated, err := e.tasks.TransitionLifecycle(ctx, ex, taskID, t.LifecycleState, to, t.Version, timestampColumn)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, hxerrors.NewConflictError(hxerrors.CodeInvalidState, "task version or state changed during update", nil)
	}
	return updated, nil
}

// AdvanceProgress moves the progress axis forward one step (§4.4):
// load-for-update, idempotent early-return, legal-transition check,
// actor-authority check, dispute freeze, escrow-terminal freeze (except the
// CLOSED pin), then the UPDATE, then the outbox event.
func (e *Engine) AdvanceProgress(ctx context.Context, ex txrunner.Executor, taskID uuid.UUID, to domain.TaskProgressState, actor domain.ProgressActor) (*postgres.Task, error) {
	t, err := e.tasks.GetForUpdate(ctx, ex, taskID)
	if err != nil {
		return nil, err
	}
	if t.ProgressState == to {
		return t, nil // idempotent no-op
	}
	if !domain.CanTransitionProgress(t.ProgressState, to) {
		return nil, hxerrors.NewStateError("illegal progress transition", "from", t.ProgressState, "to", to)
	}
	if required := domain.RequiredActor(to); required != actor {
		return nil, hxerrors.NewAuthorityError(hxerrors.CodeForbidden, "actor not authorized for this progress transition",
			"required_actor", required, "actor", actor)
	}

	hasActiveDispute, err := e.disputes.HasActiveForTask(ctx, ex, taskID)
	if err != nil {
		return nil, err
	}
	if hasActiveDispute {
		return nil, hxerrors.NewStateError("progress is frozen while a dispute is active")
	}

	if to != domain.ProgressClosed {
		escrowRow, err := e.escrow.GetByTaskForUpdate(ctx, ex, taskID)
		if err != nil {
			return nil, err
		}
		if escrowRow != nil && escrowRow.State.Terminal() {
			return nil, hxerrors.NewStateError("progress is frozen once escrow reaches a terminal state")
		}
	}

	updated, err := e.tasks.TransitionProgress(ctx, ex, taskID, to, t.Version)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, hxerrors.NewConflictError(hxerrors.CodeInvalidState, "task version changed during update", nil)
	}

	key := outbox.IdempotencyKey(EventProgressUpdated, taskID, updated.Version)
	payload := []byte(`{"task_id":"` + taskID.String() + `","to":"` + string(to) + `"}`)
	if err := e.outbox.Write(ctx, ex, EventProgressUpdated, "task", taskID, updated.Version, key, payload, "user_notifications"); err != nil {
		return nil, err
	}
	return updated, nil
}
