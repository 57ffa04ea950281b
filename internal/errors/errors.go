// Package errors defines HustleXP's domain error taxonomy, generalized from
// a typed relational-database error classification into a category/code
// structure every engine in this module returns instead of a bare error.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Category groups related Codes so callers can branch on broad error kind
// without enumerating every Code.
type Category string

const (
	CategoryInvariant Category = "INVARIANT" // storage-kernel trigger rejection (HX codes)
	CategoryState     Category = "STATE"     // illegal state-machine transition
	CategoryAuthority Category = "AUTHORITY" // assertEligibility / admin-capability rejection
	CategoryNotFound  Category = "NOT_FOUND"
	CategoryConflict  Category = "CONFLICT" // optimistic-concurrency / idempotency collision
	CategoryValidation Category = "VALIDATION"
	CategoryExternal  Category = "EXTERNAL" // payment processor / notification collaborator failure
	CategoryInternal  Category = "INTERNAL"
)

// Code is a stable, machine-matchable identifier. HX-prefixed codes mirror
// the storage-kernel trigger codes raised by internal/storage/postgres/migrations;
// the rest are engine-level.
type Code string

const (
	// Storage-kernel invariants (§4.1).
	CodeHX001 Code = "HX001" // task in terminal lifecycle state cannot be modified
	CodeHX002 Code = "HX002" // escrow in terminal state cannot be modified
	CodeHX004 Code = "HX004" // escrow.amount is immutable after INSERT
	CodeHX101 Code = "HX101" // xp_ledger INSERT requires the referenced escrow to be RELEASED
	CodeHX102 Code = "HX102" // DELETE/TRUNCATE on xp_ledger forbidden (append-only)
	CodeHX201 Code = "HX201" // escrow release requires task COMPLETED; also: xp_ledger INSERT blocked by unpaid tax
	CodeHX301 Code = "HX301" // task cannot reach COMPLETED without an ACCEPTED proof (when required)
	CodeHX401 Code = "HX401" // DELETE/UPDATE/TRUNCATE on badges forbidden (append-only)
	CodeHX501 Code = "HX501" // recurring task series limit exceeded
	CodeHX701 Code = "HX701" // UPDATE on a chargeback-type revenue ledger row forbidden (append-only)
	CodeHX702 Code = "HX702" // DELETE on a chargeback-type revenue ledger row forbidden (append-only)
	CodeHX801 Code = "HX801" // escrow release blocked: worker payouts_locked is TRUE
	CodeHX810 Code = "HX810" // escrow release blocked: worker payouts_locked is TRUE (alias trigger path)
	CodeHX811 Code = "HX811" // DELETE on payment_disputes forbidden (append-only)
	CodeHX902 Code = "HX902" // LIVE mode requires price_cents >= 1500

	// Engine-level codes (§7).
	CodeInvalidState               Code = "INVALID_STATE"
	CodeForbidden                  Code = "FORBIDDEN"
	CodeUserBanned                 Code = "USER_BANNED"
	CodeTrustTierInsufficient      Code = "TRUST_TIER_INSUFFICIENT"
	CodeTaskRiskBlockedAlpha       Code = "TASK_RISK_BLOCKED_ALPHA"
	CodeInstantTaskTrustInsufficient Code = "INSTANT_TASK_TRUST_INSUFFICIENT"
	CodePlanRequired               Code = "PLAN_REQUIRED"
	CodeNotFound                   Code = "NOT_FOUND"
	CodeAlreadyExists              Code = "ALREADY_EXISTS"
	CodeValidation                 Code = "VALIDATION"
	CodeRateLimited                Code = "RATE_LIMITED"
	CodeKillSwitch                 Code = "KILL_SWITCH_ENGAGED"
	CodeProcessorError             Code = "PROCESSOR_ERROR"
	CodeInternal                   Code = "INTERNAL"
)

// DomainError is the typed error returned by every public engine method.
type DomainError struct {
	Category  Category
	Code      Code
	Message   string
	Details   map[string]any
	Retryable bool
	cause     error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As chains.
func (e *DomainError) Unwrap() error { return e.cause }

// Is supports errors.Is(err, target) by comparing Code when target is also
// a *DomainError, matching the teacher's DatabaseError.Is convention.
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if stderrors.As(target, &de) {
		return e.Code == de.Code
	}
	return false
}

// WithDetail attaches a key/value pair of structured context and returns the
// same error for chaining.
func (e *DomainError) WithDetail(key string, value any) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// IsRetryable reports whether the caller (typically the outbox dispatcher)
// may retry the operation that produced this error.
func (e *DomainError) IsRetryable() bool { return e.Retryable }

func newError(category Category, code Code, message string, cause error, retryable bool) *DomainError {
	return &DomainError{Category: category, Code: code, Message: message, cause: cause, Retryable: retryable}
}

// NewInvariantError wraps a storage-kernel trigger rejection (an HX code).
// Invariant violations are never retryable: the caller sent data the
// database will reject again.
func NewInvariantError(code Code, message string, cause error) *DomainError {
	return newError(CategoryInvariant, code, message, cause, false)
}

// NewStateError reports an illegal state-machine transition attempt.
func NewStateError(message string, details ...any) *DomainError {
	e := newError(CategoryState, CodeInvalidState, message, nil, false)
	return withPairs(e, details)
}

// NewAuthorityError reports an assertEligibility or admin-capability rejection.
func NewAuthorityError(code Code, message string, details ...any) *DomainError {
	e := newError(CategoryAuthority, code, message, nil, false)
	return withPairs(e, details)
}

// NewNotFoundError reports a missing aggregate.
func NewNotFoundError(entity string, id any) *DomainError {
	return newError(CategoryNotFound, CodeNotFound, fmt.Sprintf("%s not found", entity), nil, false).
		WithDetail("entity", entity).WithDetail("id", fmt.Sprint(id))
}

// NewConflictError reports an optimistic-concurrency loss or idempotency-key
// collision (HX004, HX801, HX810, HX811, unique-constraint violations).
// Conflicts ARE retryable: the caller can re-read and try again.
func NewConflictError(code Code, message string, cause error) *DomainError {
	return newError(CategoryConflict, code, message, cause, true)
}

// NewValidationError reports malformed caller input.
func NewValidationError(message string, details ...any) *DomainError {
	e := newError(CategoryValidation, CodeValidation, message, nil, false)
	return withPairs(e, details)
}

// NewExternalError wraps a failure from an out-of-process collaborator
// (payment processor, notification dispatcher). Retryable by default since
// most such failures are transient network/service errors.
func NewExternalError(code Code, message string, cause error) *DomainError {
	return newError(CategoryExternal, code, message, cause, true)
}

// NewInternalError wraps an unexpected failure (serialization bug, nil
// collaborator, etc.) that should not normally occur.
func NewInternalError(message string, cause error) *DomainError {
	return newError(CategoryInternal, CodeInternal, message, cause, false)
}

func withPairs(e *DomainError, kv []any) *DomainError {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e.WithDetail(key, kv[i+1])
	}
	return e
}

// As is a convenience wrapper over errors.As for callers that don't want to
// declare a local *DomainError variable.
func As(err error) (*DomainError, bool) {
	var de *DomainError
	ok := stderrors.As(err, &de)
	return de, ok
}

// IsCode reports whether err is a *DomainError carrying the given code.
func IsCode(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// IsRetryable reports whether err is a retryable *DomainError.
func IsRetryable(err error) bool {
	de, ok := As(err)
	return ok && de.Retryable
}
