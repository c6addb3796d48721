package assignment

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/buzonshare/buzonshare/pkg/authz"
	"github.com/buzonshare/buzonshare/pkg/httputil"
	"github.com/buzonshare/buzonshare/pkg/session"
)

// FlashWriter records the outcome message the UI shows once after a
// form flow's redirect.
type FlashWriter interface {
	SetFlash(ctx context.Context, token, message string) error
}

// Handlers exposes the assignment engine over HTTP.
type Handlers struct {
	engine *Engine
	flash  FlashWriter
	logger *slog.Logger
}

// NewHandlers creates assignment handlers
func NewHandlers(engine *Engine, flash FlashWriter, logger *slog.Logger) *Handlers {
	return &Handlers{engine: engine, flash: flash, logger: logger}
}

// RegisterRoutes registers assignment routes on the router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/{id}/emails", h.replaceAssignments).Methods("PUT")
	router.HandleFunc("/users/{id}/emails", h.listAssignments).Methods("GET")
	router.HandleFunc("/users/{id}/emails/available", h.searchAvailable).Methods("GET")
	router.HandleFunc("/users/{id}/emails/{emailID}", h.removeAssignment).Methods("DELETE")
}

func (h *Handlers) replaceAssignments(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	targetUserID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req AssignRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.engine.Assign(r.Context(), actor, targetUserID, req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	message := fmt.Sprintf("Se asignaron %d correos", len(result.AssignedIDs))
	if sess, ok := session.FromContext(r.Context()); ok && h.flash != nil {
		if err := h.flash.SetFlash(r.Context(), sess.Token, message); err != nil {
			h.logger.Warn("failed to record flash message", "error", err)
		}
	}

	httputil.WriteSuccess(w, httputil.Payload{
		"assigned_ids":        result.AssignedIDs,
		"previous_ids":        result.PreviousIDs,
		"cascade_removed_ids": result.CascadeRemovedIDs,
		"message":             message,
	})
}

func (h *Handlers) listAssignments(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	targetUserID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	assignments, err := h.engine.GetUserAssignments(r.Context(), actor, targetUserID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if assignments == nil {
		assignments = []*Assignment{}
	}

	httputil.WriteSuccess(w, httputil.Payload{"assignments": assignments})
}

func (h *Handlers) searchAvailable(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	targetUserID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	query := httputil.ParseQueryString(r, "q", "")
	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	available, hasMore, err := h.engine.SearchAvailableEmails(r.Context(), actor, targetUserID, query, limit, offset)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, httputil.Payload{
		"emails":   available,
		"has_more": hasMore,
	})
}

func (h *Handlers) removeAssignment(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	targetUserID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	emailID, ok := httputil.ParsePathInt64OrError(w, r, "emailID")
	if !ok {
		return
	}

	if err := h.engine.RemoveAssignment(r.Context(), actor, targetUserID, emailID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	h.logger.Info("assignment removed",
		"actor_id", actor.ID,
		"target_user_id", targetUserID,
		"email_id", emailID,
	)
	httputil.WriteSuccess(w, httputil.Payload{"removed": emailID})
}
