// Package api assembles the admin panel's HTTP surface: one gorilla/mux
// router carrying the session, user, email, assignment, template,
// platform, and activity-log handler groups behind a shared middleware
// chain (request ids, panic recovery, request logging, metrics, and
// optional OpenTelemetry tracing).
package api
