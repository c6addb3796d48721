// Package postgres owns the database connection lifecycle: opening the
// pool with sane limits and running the versioned schema migrations once
// at startup. Nothing else in the service creates connections or touches
// the schema.
package postgres
