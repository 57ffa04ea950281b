package trust

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hustlexp/hustlexp-core/internal/domain"
	"github.com/hustlexp/hustlexp-core/internal/outbox"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

const (
	sourceDisputePenaltyWorker = "dispute_penalty_worker"
	sourceDisputePenaltyPoster = "dispute_penalty_poster"

	posterPenaltyWindow     = 30 * 24 * time.Hour
	posterPenaltyHoldPeriod = 14 * 24 * time.Hour
	posterRepeatThreshold   = 2
)

// DisputePenaltyPayload is the outbox payload internal/dispute writes when
// a dispute resolves (§4.7).
type DisputePenaltyPayload struct {
	DisputeID uuid.UUID            `json:"dispute_id"`
	TaskID    uuid.UUID            `json:"task_id"`
	Outcome   domain.DisputeOutcome `json:"outcome"`
	PosterID  uuid.UUID            `json:"poster_id"`
	WorkerID  uuid.UUID            `json:"worker_id"`
}

// PenaltySink adapts the Trust Engine to the outbox fabric, applying the
// tier/hold effects a dispute resolution triggers. Dedup is keyed on the
// job's idempotency key via trust_ledger's UNIQUE constraint, so replaying
// the same job never double-applies a penalty (§4.7).
type PenaltySink struct {
	engine *Engine
}

func NewPenaltySink(e *Engine) *PenaltySink { return &PenaltySink{engine: e} }

func (s *PenaltySink) Dispatch(ctx context.Context, job outbox.Job) error {
	return s.engine.applyDisputePenalty(ctx, job)
}

func (e *Engine) applyDisputePenalty(ctx context.Context, job outbox.Job) error {
	var p DisputePenaltyPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return err
	}
	return e.runner.WithTransaction(ctx, func(ctx context.Context, ex txrunner.Executor) error {
		switch p.Outcome {
		case domain.OutcomeRefund:
			// Poster's dispute succeeded: the worker did not deliver.
			return e.penalizeWorker(ctx, ex, p.WorkerID, job.IdempotencyKey)
		case domain.OutcomeRelease:
			// Worker's side prevailed: the poster's dispute did not hold up.
			return e.penalizePosterIfRepeat(ctx, ex, p.PosterID, job.IdempotencyKey)
		default:
			// SPLIT: the admin already apportioned blame via the amounts; no
			// unilateral tier/hold penalty follows from the outcome alone.
			return nil
		}
	})
}

func (e *Engine) penalizeWorker(ctx context.Context, ex txrunner.Executor, workerID uuid.UUID, idempotencyKey string) error {
	user, err := e.users.GetForUpdate(ctx, ex, workerID)
	if err != nil {
		return err
	}
	demoted := user.TrustTier.Demote()

	_, alreadyRecorded, err := e.ledger.Append(ctx, ex, workerID, user.TrustTier, demoted, sourceDisputePenaltyWorker, idempotencyKey)
	if err != nil {
		return err
	}
	if alreadyRecorded {
		return nil
	}
	if demoted == user.TrustTier {
		return nil // already ROOKIE; nothing left to demote
	}
	if _, err := e.users.UpdateTrustTier(ctx, ex, workerID, demoted, user.Version); err != nil {
		return err
	}
	e.cache.invalidateUser(workerID)
	e.log.Info("worker demoted after dispute loss", "user_id", workerID, "from", user.TrustTier, "to", demoted)
	return nil
}

func (e *Engine) penalizePosterIfRepeat(ctx context.Context, ex txrunner.Executor, posterID uuid.UUID, idempotencyKey string) error {
	user, err := e.users.GetForUpdate(ctx, ex, posterID)
	if err != nil {
		return err
	}

	// Record the penalty marker itself (no tier change) so it's visible to
	// CountSinceBySource and to any future audit of a poster's history.
	_, alreadyRecorded, err := e.ledger.Append(ctx, ex, posterID, user.TrustTier, user.TrustTier, sourceDisputePenaltyPoster, idempotencyKey)
	if err != nil {
		return err
	}
	if alreadyRecorded {
		return nil
	}

	count, err := e.ledger.CountSinceBySource(ctx, ex, posterID, sourceDisputePenaltyPoster, posterPenaltyWindow)
	if err != nil {
		return err
	}
	if count < posterRepeatThreshold {
		return nil
	}

	until := time.Now().Add(posterPenaltyHoldPeriod)
	if _, err := e.users.SetTrustHold(ctx, ex, posterID, true, "repeat dispute penalties within 30 days", &until, user.Version); err != nil {
		return err
	}
	e.cache.invalidateUser(posterID)
	e.log.Info("poster placed on trust hold after repeat dispute penalties", "user_id", posterID, "count", count)
	return nil
}
