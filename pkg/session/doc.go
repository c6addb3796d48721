// Package session provides redis-backed login sessions. A session is an
// opaque token mapped to the logged-in user's identity; the token
// travels in a cookie and expires server-side after the configured TTL.
package session
