// Package users manages the user catalog: creation, credential checks,
// updates and deletion, honoring the role hierarchy. Admins create and
// own their users; superadmins manage admins and unowned users.
package users
