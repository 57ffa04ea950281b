package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
	"github.com/hustlexp/hustlexp-core/internal/txrunner"
)

// AdminRoleRepository reads and writes the admin_roles table, the
// authority source consulted before any dispute resolution (§4.7).
type AdminRoleRepository struct{}

func NewAdminRoleRepository() *AdminRoleRepository { return &AdminRoleRepository{} }

// Get fetches a user's admin role, if any.
func (r *AdminRoleRepository) Get(ctx context.Context, ex txrunner.Executor, userID uuid.UUID) (*AdminRole, error) {
	row := ex.QueryRowContext(ctx, `SELECT user_id, can_resolve_disputes, created_at FROM admin_roles WHERE user_id = $1`, userID)
	var a AdminRole
	err := row.Scan(&a.UserID, &a.CanResolveDisputes, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, hxerrors.NewNotFoundError("admin_role", userID)
	}
	if err != nil {
		return nil, wrapDBError("admin_roles.Get", err)
	}
	return &a, nil
}

// CanResolveDisputes reports whether a user holds dispute-resolution
// authority, treating "no admin_roles row" as false rather than an error.
func (r *AdminRoleRepository) CanResolveDisputes(ctx context.Context, ex txrunner.Executor, userID uuid.UUID) (bool, error) {
	var can bool
	err := ex.QueryRowContext(ctx,
		`SELECT can_resolve_disputes FROM admin_roles WHERE user_id = $1`, userID,
	).Scan(&can)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, wrapDBError("admin_roles.CanResolveDisputes", err)
	}
	return can, nil
}

// Grant upserts a user's admin role.
func (r *AdminRoleRepository) Grant(ctx context.Context, ex txrunner.Executor, userID uuid.UUID, canResolveDisputes bool) (*AdminRole, error) {
	row := ex.QueryRowContext(ctx, `
		INSERT INTO admin_roles (user_id, can_resolve_disputes) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET can_resolve_disputes = EXCLUDED.can_resolve_disputes
		RETURNING user_id, can_resolve_disputes, created_at`, userID, canResolveDisputes)
	var a AdminRole
	if err := row.Scan(&a.UserID, &a.CanResolveDisputes, &a.CreatedAt); err != nil {
		return nil, wrapDBError("admin_roles.Grant", err)
	}
	return &a, nil
}
