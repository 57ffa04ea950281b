package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

// ProofRepository reads and writes the proofs table.
type ProofRepository struct{}

func NewProofRepository() *ProofRepository { return &ProofRepository{} }

const proofColumns = `id, task_id, submitter_id, state, description, media_url, created_at, updated_at`

func scanProof(row interface{ Scan(...any) error }) (*Proof, error) {
	var p Proof
	err := row.Scan(&p.ID, &p.TaskID, &p.SubmitterID, &p.State, &p.Description, &p.MediaURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a PENDING proof for a task.
func (r *ProofRepository) Create(ctx context.Context, ex txrunner.Executor, taskID, submitterID uuid.UUID, description string, mediaURL *string) (*Proof, error) {
	row := ex.QueryRowContext(ctx, `
		INSERT INTO proofs (task_id, submitter_id, description, media_url) VALUES ($1, $2, $3, $4)
		RETURNING `+proofColumns, taskID, submitterID, description, mediaURL)
	p, err := scanProof(row)
	if err != nil {
		return nil, wrapDBError("proofs.Create", err)
	}
	return p, nil
}

// Get fetches a proof by id.
func (r *ProofRepository) Get(ctx context.Context, ex txrunner.Executor, id uuid.UUID) (*Proof, error) {
	row := ex.QueryRowContext(ctx, `SELECT `+proofColumns+` FROM proofs WHERE id = $1`, id)
	p, err := scanProof(row)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewNotFoundError("proof", id)
	}
	if err != nil {
		return nil, wrapDBError("proofs.Get", err)
	}
	return p, nil
}

// LatestForTask returns the most recently submitted proof for a task, if any.
func (r *ProofRepository) LatestForTask(ctx context.Context, ex txrunner.Executor, taskID uuid.UUID) (*Proof, error) {
	row := ex.QueryRowContext(ctx, `
		SELECT `+proofColumns+` FROM proofs WHERE task_id = $1 ORDER BY created_at DESC LIMIT 1`, taskID)
	p, err := scanProof(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("proofs.LatestForTask", err)
	}
	return p, nil
}

// Accept marks a proof ACCEPTED.
func (r *ProofRepository) Accept(ctx context.Context, ex txrunner.Executor, id uuid.UUID) (*Proof, error) {
	row := ex.QueryRowContext(ctx, `
		UPDATE proofs SET state = 'ACCEPTED', updated_at = now() WHERE id = $1 AND state = 'PENDING'
		RETURNING `+proofColumns, id)
	p, err := scanProof(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("proofs.Accept", err)
	}
	return p, nil
}

// Reject marks a proof REJECTED.
func (r *ProofRepository) Reject(ctx context.Context, ex txrunner.Executor, id uuid.UUID) (*Proof, error) {
	row := ex.QueryRowContext(ctx, `
		UPDATE proofs SET state = 'REJECTED', updated_at = now() WHERE id = $1 AND state = 'PENDING'
		RETURNING `+proofColumns, id)
	p, err := scanProof(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("proofs.Reject", err)
	}
	return p, nil
}

// HasAccepted reports whether the task has at least one ACCEPTED proof,
// matching the HX301 trigger's own check (used by the engine for a fast
// pre-flight failure message before the UPDATE is attempted).
func (r *ProofRepository) HasAccepted(ctx context.Context, ex txrunner.Executor, taskID uuid.UUID) (bool, error) {
	var exists bool
	err := ex.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM proofs WHERE task_id = $1 AND state = 'ACCEPTED')`, taskID,
	).Scan(&exists)
	if err != nil {
		return false, wrapDBError("proofs.HasAccepted", err)
	}
	return exists, nil
}
