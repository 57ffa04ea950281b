// Package notify defines the notification-dispatch contract consumed by
// outbox workers (§6): delivering a user-facing message for an event the
// core already committed. The concrete channel (push, email, SMS) is out
// of scope; this package carries the interface plus a logging-backed Sink
// useful as a default wiring and in tests.
package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/hustlexp/hustlexp-core/internal/logging"
	"github.com/hustlexp/hustlexp-core/internal/outbox"
)

// Dispatcher sends a notification to userID. Implementations MUST be
// idempotent on (userID, eventType, referenceID): outbox delivery is
// at-least-once, so the same event may be dispatched more than once.
type Dispatcher interface {
	Notify(ctx context.Context, userID uuid.UUID, eventType string, referenceID uuid.UUID, message string) error
}

// LogDispatcher logs notifications instead of sending them, for
// deployments or tests that don't wire a real channel.
type LogDispatcher struct {
	log *logging.Logger
}

func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{log: logging.GetDefault().Component("notify")}
}

func (d *LogDispatcher) Notify(ctx context.Context, userID uuid.UUID, eventType string, referenceID uuid.UUID, message string) error {
	d.log.Info("notification", "user_id", userID, "event_type", eventType, "reference_id", referenceID, "message", message)
	return nil
}

// Sink adapts a Dispatcher to the outbox fabric for the user_notifications
// queue: every job on that queue targets the user named by the job's
// aggregate id (every producer in this core writes user-aggregate events
// to this queue) and is delivered as a plain description of the event.
type Sink struct {
	dispatcher Dispatcher
}

func NewSink(d Dispatcher) *Sink { return &Sink{dispatcher: d} }

func (s *Sink) Dispatch(ctx context.Context, job outbox.Job) error {
	return s.dispatcher.Notify(ctx, job.AggregateID, job.EventType, job.AggregateID, job.EventType)
}
