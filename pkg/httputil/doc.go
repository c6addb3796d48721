// Package httputil provides HTTP utilities: the JSON response envelope,
// request parsing helpers, and the shared middleware stack.
//
// # Response envelope
//
// Every JSON response carries a "success" flag. Successful payload fields
// sit at the top level next to it; failures carry a single "error" string:
//
//	{"success": true, "assigned_ids": [1, 2]}
//	{"success": false, "error": "forbidden"}
//
// Handlers write responses through the helpers:
//
//	httputil.WriteSuccess(w, httputil.Payload{"users": users})
//	httputil.WriteDomainError(w, err) // maps the core error taxonomy to statuses
//
// # Request parsing
//
//	var req AssignRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // failure envelope already written
//	}
//	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil
