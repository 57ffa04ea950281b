package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err1 := NewInvariantError(CodeHX004, "version conflict", nil)
	err2 := NewInvariantError(CodeHX004, "version conflict", nil)
	err3 := NewInvariantError(CodeHX002, "currency mismatch", nil)

	assert.True(t, stderrors.Is(err1, err2))
	assert.False(t, stderrors.Is(err1, err3))
}

func TestDomainError_UnwrapExposesCause(t *testing.T) {
	cause := stderrors.New("pq: duplicate key value violates unique constraint")
	err := NewConflictError(CodeHX810, "idempotency key already claimed", cause)

	require.ErrorIs(t, err, err)
	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.True(t, err.IsRetryable())
}

func TestDomainError_WithDetailAccumulates(t *testing.T) {
	err := NewStateError("cannot accept task", "task_id", "t-1", "lifecycle_state", "COMPLETED")
	assert.Equal(t, "t-1", err.Details["task_id"])
	assert.Equal(t, "COMPLETED", err.Details["lifecycle_state"])
}

func TestIsCodeAndIsRetryable(t *testing.T) {
	err := NewNotFoundError("task", "t-404")
	assert.True(t, IsCode(err, CodeNotFound))
	assert.False(t, IsRetryable(err))

	conflict := NewConflictError(CodeHX004, "stale version", nil)
	assert.True(t, IsRetryable(conflict))
}
