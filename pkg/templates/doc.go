// Package templates manages reusable permission templates: named bundles
// of authorized-email ids that can be applied to many users at once.
//
// Applying a template runs one assignment replacement per target user.
// Each replacement is independent; a failure for one user does not roll
// back the others, and the caller gets a per-user accounting of what
// succeeded.
package templates
