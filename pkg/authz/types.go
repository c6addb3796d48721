package authz

import (
	"errors"
)

// Role represents a principal's role in the panel
type Role string

const (
	RoleSuperadmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
)

// Valid reports whether the role is one of the three known roles
func (r Role) Valid() bool {
	switch r {
	case RoleSuperadmin, RoleAdmin, RoleUser:
		return true
	}
	return false
}

// Actor is the authenticated principal performing an operation. It is
// always passed explicitly into core operations; the engine never reads
// identity from ambient session state.
type Actor struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

// ManagedUser is the slice of a user record the hierarchy resolver needs
// and hands back to callers on success.
type ManagedUser struct {
	ID               int64  `json:"id"`
	Username         string `json:"username"`
	Role             Role   `json:"role"`
	CreatedByAdminID *int64 `json:"created_by_admin_id,omitempty"`
}

// OwnedByAdmin reports whether the user was created by (and is owned by)
// an admin.
func (u *ManagedUser) OwnedByAdmin() bool {
	return u.Role == RoleUser && u.CreatedByAdminID != nil
}

// Sentinel errors for the outcome taxonomy shared by the core packages.
// Pre-mutation failures (ErrNotFound, ErrForbidden, ErrScopeViolation,
// ErrValidation) short-circuit before any write; ErrTransaction always
// means the whole transaction was rolled back.
var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrScopeViolation = errors.New("requested emails are outside the delegated scope")
	ErrValidation     = errors.New("invalid request")
	ErrTransaction    = errors.New("transaction failed")
)
