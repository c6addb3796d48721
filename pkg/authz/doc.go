// Package authz resolves who may manage whom in the shared-inbox panel.
//
// # Overview
//
// Two read-only resolvers gate every mutating operation in the system:
//
//   - the role hierarchy resolver (CanManage) decides whether an acting
//     principal may manage a target user, based on role and ownership
//     (created_by_admin_id), and
//   - the allowed-email scope resolver (AllowedScope) computes the subset
//     of the authorized-email catalog an admin is permitted to assign.
//
// # Ownership model
//
// Users created by an admin carry that admin's id in created_by_admin_id
// and are "owned" by it. A superadmin manages admins and unowned users
// directly, but never an admin-owned user; the owning admin is the only
// principal allowed to manage those. Removing an email from an admin's own
// set still cascades down to its owned users (see pkg/assignment) — that is
// the single indirect write path a superadmin has into owned users.
//
// # Delegation scope
//
// The admin_allowed_emails table delegates a slice of the catalog to an
// admin. The absence of any row for an admin means the admin is
// unrestricted; it is NOT an empty restriction. An explicit empty
// restricted scope, by contrast, allows assigning nothing. Callers must
// keep these two states apart, which is why AllowedScope returns a Scope
// value instead of a bare slice.
//
// Both resolvers are pure reads; the delegation table is written elsewhere.
package authz
