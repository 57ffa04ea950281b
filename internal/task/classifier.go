package task

import "context"

// CompletenessClassifier is the injected AI task-completeness gate checked
// by Create for instant-mode tasks (§4.4, §9). AI-assisted classification
// is an external collaborator outside this module's scope; this interface
// defines the contract the Task Engine calls, and the only implementation
// shipped here is the permissive AlwaysComplete below.
type CompletenessClassifier interface {
	// IsComplete reports whether the task description/fields given are
	// complete enough to accept instantly, or an operator-facing reason
	// why not.
	IsComplete(ctx context.Context, title, description string, priceCents int64) (ok bool, reason string, err error)
}

// AlwaysComplete is a permissive default classifier for deployments or
// tests that don't wire a real one.
type AlwaysComplete struct{}

func (AlwaysComplete) IsComplete(ctx context.Context, title, description string, priceCents int64) (bool, string, error) {
	return true, "", nil
}
