// Package outbox implements the transactional outbox and worker fabric
// (§4.2): in-transaction writes paired with an out-of-transaction
// dispatcher that claims rows, hands them to a per-queue Sink, and marks
// them dispatched once the sink's effect has been applied. The sink is
// responsible for idempotent application; replaying the same idempotency
// key must never double-apply.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/logging"
	"github.com/hustlexp/hustlexp-core/internal/storage/postgres"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

// Job is the payload handed to a Sink: everything it needs to apply the
// event's downstream effect idempotently.
type Job struct {
	ID             uuid.UUID
	EventType      string
	AggregateType  string
	AggregateID    uuid.UUID
	EventVersion   int
	IdempotencyKey string
	Payload        []byte
	QueueName      string
}

// Sink applies a job's downstream effect. Implementations MUST be
// idempotent on IdempotencyKey: re-delivery of the same job (at-least-once
// delivery is the contract, §4.2) must not double-apply.
type Sink interface {
	Dispatch(ctx context.Context, job Job) error
}

// Writer exposes writeToOutbox (§4.2) to engines. MUST be called with an
// Executor bound to the same transaction as the state change the event
// describes; if that transaction rolls back, the outbox row never exists.
type Writer struct {
	repo *postgres.OutboxRepository
}

func NewWriter() *Writer { return &Writer{repo: postgres.NewOutboxRepository()} }

// Write inserts an outbox row. idempotencyKey is conventionally
// "<eventType>:<aggregateId>:<eventVersion>" per §4.3/§4.4.
func (w *Writer) Write(ctx context.Context, ex txrunner.Executor, eventType, aggregateType string, aggregateID uuid.UUID, eventVersion int, idempotencyKey string, payload []byte, queueName string) error {
	_, err := w.repo.Write(ctx, ex, eventType, aggregateType, aggregateID, eventVersion, idempotencyKey, payload, queueName)
	return err
}

// IdempotencyKey builds the canonical "<eventType>:<aggregateId>:<version>" key.
func IdempotencyKey(eventType string, aggregateID uuid.UUID, version int) string {
	return fmt.Sprintf("%s:%s:%d", eventType, aggregateID, version)
}

// Config governs dispatcher polling and worker fan-out.
type Config struct {
	PollInterval    time.Duration
	ClaimBatch      int
	WorkerCount     int
	StuckJobTimeout time.Duration
}

// Dispatcher claims undispatched outbox rows per queue and hands them to
// the registered Sink, mirroring the teacher's errgroup-fanned worker loops
// in internal/peermanagement/overlay.go, retargeted from peer I/O loops to
// queue-claim loops.
type Dispatcher struct {
	runner *txrunner.Runner
	repo   *postgres.OutboxRepository
	sinks  map[string]Sink
	cfg    Config
	log    *logging.Logger
}

// New constructs a Dispatcher. sinks maps queue name to the Sink
// responsible for that queue's jobs (e.g. "critical_payments" ->
// the XP-award/notify sink, "user_notifications" -> the realtime sink).
func New(runner *txrunner.Runner, sinks map[string]Sink, cfg Config) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.ClaimBatch <= 0 {
		cfg.ClaimBatch = 25
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.StuckJobTimeout <= 0 {
		cfg.StuckJobTimeout = 10 * time.Minute
	}
	return &Dispatcher{
		runner: runner,
		repo:   postgres.NewOutboxRepository(),
		sinks:  sinks,
		cfg:    cfg,
		log:    logging.GetDefault().Component("outbox"),
	}
}

// claimAndDispatchOnce claims up to ClaimBatch rows for queueName and hands
// each to its sink. Claims happen in their own short transaction; dispatch
// (which may perform external I/O) runs outside any open transaction, and
// MarkDispatched commits independently per job so one job's failure cannot
// roll back another's success.
func (d *Dispatcher) claimAndDispatchOnce(ctx context.Context, queueName string) error {
	sink, ok := d.sinks[queueName]
	if !ok {
		return hxerrors.NewInternalError(fmt.Sprintf("no sink registered for queue %q", queueName), nil)
	}

	var jobs []Job
	err := d.runner.WithTransaction(ctx, func(ctx context.Context, ex txrunner.Executor) error {
		rows, err := d.repo.ClaimBatch(ctx, ex, queueName, d.cfg.ClaimBatch)
		if err != nil {
			return err
		}
		for _, r := range rows {
			jobs = append(jobs, Job{
				ID: r.ID, EventType: r.EventType, AggregateType: r.AggregateType, AggregateID: r.AggregateID,
				EventVersion: r.EventVersion, IdempotencyKey: r.IdempotencyKey, Payload: r.Payload, QueueName: r.QueueName,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if dispatchErr := sink.Dispatch(ctx, job); dispatchErr != nil {
			d.log.With("queue", queueName, "job_id", job.ID, "idempotency_key", job.IdempotencyKey).
				Error("outbox job dispatch failed", "err", dispatchErr)
			continue
		}
		if err := d.runner.WithTransaction(ctx, func(ctx context.Context, ex txrunner.Executor) error {
			return d.repo.MarkDispatched(ctx, ex, job.ID)
		}); err != nil {
			d.log.With("queue", queueName, "job_id", job.ID).Error("failed to mark job dispatched", "err", err)
		}
	}
	return nil
}

// Run starts WorkerCount polling loops per queue, fanned out with errgroup
// so a panic or cancellation in one loop tears down the rest too (mirroring
// Overlay.Run's errgroup.WithContext fan-out). Multiple workers per queue
// are safe to race against each other: ClaimBatch's FOR UPDATE SKIP LOCKED
// means two workers never claim the same row.
func (d *Dispatcher) Run(ctx context.Context) error {
	queues := make([]string, 0, len(d.sinks))
	for q := range d.sinks {
		queues = append(queues, q)
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, q := range queues {
		queueName := q
		for i := 0; i < d.cfg.WorkerCount; i++ {
			g.Go(func() error { return d.queueLoop(gCtx, queueName) })
		}
	}
	g.Go(func() error { return d.recoveryLoop(gCtx) })
	return g.Wait()
}

func (d *Dispatcher) queueLoop(ctx context.Context, queueName string) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.claimAndDispatchOnce(ctx, queueName); err != nil {
				d.log.With("queue", queueName).Error("claim/dispatch cycle failed", "err", err)
			}
		}
	}
}

// recoveryLoop periodically reopens claims abandoned by a crashed worker
// (§4.2 stuck-job recovery), independent of per-queue polling.
func (d *Dispatcher) recoveryLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.StuckJobTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := d.runner.WithTransaction(ctx, func(ctx context.Context, ex txrunner.Executor) error {
				n, err := d.repo.ReleaseStuckClaims(ctx, ex, d.cfg.StuckJobTimeout)
				if n > 0 {
					d.log.Warn("released stuck outbox claims", "count", n)
				}
				return err
			})
			if err != nil {
				d.log.Error("stuck-claim recovery failed", "err", err)
			}
		}
	}
}
