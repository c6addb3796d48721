// Package audit records permission mutations in the activity_logs table:
// who changed what, with the outcome and a structured detail payload.
// Rows outlive their user; deleting a user nulls the reference but keeps
// the event.
package audit
