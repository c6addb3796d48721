// Package assignment implements the email assignment engine: the
// transactional replacement of a user's authorized-email set, gated on
// the role hierarchy and the acting admin's delegated scope.
//
// A replace is all-or-nothing. The engine snapshots the previous set,
// deletes it, inserts the scope-filtered requested set, and — when a
// superadmin rewrites an admin's set — removes the revoked emails from
// every user that admin owns, all inside one transaction.
//
// An empty requested set is a valid clear. A non-empty request whose
// every id falls outside the delegated scope is a scope violation and
// performs no writes.
package assignment
