// Package platform manages the streaming-platform catalog and the
// per-user subject-keyword grants that let the bot match incoming mail
// for a platform (password resets, login codes) to the users allowed to
// see it.
//
// Grants are replaced per (user, platform) pair the same way email
// assignments are: snapshot, delete, insert, one transaction, with an
// empty keyword list acting as a clear.
package platform
