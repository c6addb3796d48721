package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/buzonshare/buzonshare/pkg/authz"
)

// Payload holds the top-level fields of a successful response.
type Payload map[string]interface{}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 envelope with the payload fields merged in.
func WriteSuccess(w http.ResponseWriter, payload Payload) error {
	return WriteSuccessStatus(w, http.StatusOK, payload)
}

// WriteCreated writes a 201 envelope with the payload fields merged in.
func WriteCreated(w http.ResponseWriter, payload Payload) error {
	return WriteSuccessStatus(w, http.StatusCreated, payload)
}

// WriteSuccessStatus writes a success envelope with an explicit status code.
func WriteSuccessStatus(w http.ResponseWriter, status int, payload Payload) error {
	body := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true
	return WriteJSON(w, status, body)
}

// WriteError writes a failure envelope with the given status and message.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// WriteValidationError writes a validation failure (400 Bad Request)
func WriteValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized failure (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message)
}

// WriteDomainError maps the core error taxonomy onto HTTP statuses and
// writes the failure envelope. Unknown errors become opaque 500s so
// internal detail never leaks to clients.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authz.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, authz.ErrForbidden):
		WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, authz.ErrScopeViolation):
		WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, authz.ErrValidation):
		WriteError(w, http.StatusBadRequest, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
