package authz

import (
	"context"
	"database/sql"
	"fmt"
)

// Resolver answers manageability and scope questions against the store.
type Resolver struct {
	db *sql.DB
}

// NewResolver creates a new authorization resolver
func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{db: db}
}

// CanManage decides whether the actor may manage the target user and, if
// so, returns the target. The rules:
//
//   - superadmin manages admins and unowned users; a user owned by an
//     admin is off-limits to direct superadmin management,
//   - an admin manages exactly the users it created,
//   - every other combination is denied.
//
// Read-only; this predicate gates every mutating operation in the core.
func (r *Resolver) CanManage(ctx context.Context, actor Actor, targetUserID int64) (*ManagedUser, error) {
	target, err := r.loadUser(ctx, targetUserID)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case RoleSuperadmin:
		if target.OwnedByAdmin() {
			return nil, fmt.Errorf("user %d is managed by admin %d: %w", target.ID, *target.CreatedByAdminID, ErrForbidden)
		}
		return target, nil
	case RoleAdmin:
		if target.Role == RoleUser && target.CreatedByAdminID != nil && *target.CreatedByAdminID == actor.ID {
			return target, nil
		}
		return nil, fmt.Errorf("admin %d does not manage user %d: %w", actor.ID, target.ID, ErrForbidden)
	default:
		return nil, fmt.Errorf("role %q cannot manage users: %w", actor.Role, ErrForbidden)
	}
}

// AllowedScope computes the set of authorized-email ids the actor may
// assign. Superadmins (and actors without an id) are unrestricted. For an
// admin, the delegation rows in admin_allowed_emails define the scope;
// zero rows means the admin is unrestricted, not that nothing is allowed.
func (r *Resolver) AllowedScope(ctx context.Context, actor Actor) (Scope, error) {
	if actor.Role != RoleAdmin || actor.ID == 0 {
		return AllScope(), nil
	}

	query := `
		SELECT authorized_email_id
		FROM admin_allowed_emails
		WHERE admin_user_id = $1
		ORDER BY authorized_email_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, actor.ID)
	if err != nil {
		return Scope{}, fmt.Errorf("failed to load delegated emails: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return Scope{}, fmt.Errorf("failed to scan delegated email id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return Scope{}, fmt.Errorf("failed to read delegated emails: %w", err)
	}

	// No delegation rows means no restriction.
	if len(ids) == 0 {
		return AllScope(), nil
	}
	return RestrictedScope(ids), nil
}

func (r *Resolver) loadUser(ctx context.Context, userID int64) (*ManagedUser, error) {
	query := `
		SELECT id, username, role, created_by_admin_id
		FROM users
		WHERE id = $1
	`

	var user ManagedUser
	var createdBy sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&user.Username,
		&user.Role,
		&createdBy,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}

	if createdBy.Valid {
		id := createdBy.Int64
		user.CreatedByAdminID = &id
	}

	return &user, nil
}
