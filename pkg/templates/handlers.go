package templates

import (
	"context"
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

// Handlers exposes template management over HTTP. Every route requires
// a managing role; templates themselves are shared across admins.
type Handlers struct {
	store   *Store
	service *Service
	flash   FlashWriter
	logger  *slog.Logger
}

// NewHandlers creates template handlers
func NewHandlers(store *Store, service *Service, flash FlashWriter, logger *slog.Logger) *Handlers {
	return &Handlers{store: store, service: service, flash: flash, logger: logger}
}

// RegisterRoutes registers template routes on the router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/templates", h.listTemplates).Methods("GET")
	router.HandleFunc("/templates", h.createTemplate).Methods("POST")
	router.HandleFunc("/templates/{id}", h.getTemplate).Methods("GET")
	router.HandleFunc("/templates/{id}", h.updateTemplate).Methods("PUT")
	router.HandleFunc("/templates/{id}", h.deleteTemplate).Methods("DELETE")
	router.HandleFunc("/templates/{id}/apply", h.applyTemplate).Methods("POST")
}

func (h *Handlers) requireManager(w http.ResponseWriter, r *http.Request) (authz.Actor, bool) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return authz.Actor{}, false
	}
	if actor.Role != authz.RoleSuperadmin && actor.Role != authz.RoleAdmin {
		httputil.WriteError(w, http.StatusForbidden, "forbidden")
		return authz.Actor{}, false
	}
	return actor, true
}

func (h *Handlers) listTemplates(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireManager(w, r); !ok {
		return
	}

	list, err := h.store.List(r.Context())
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if list == nil {
		list = []*Template{}
	}
	httputil.WriteSuccess(w, httputil.Payload{"templates": list})
}

func (h *Handlers) createTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireManager(w, r)
	if !ok {
		return
	}

	var req CreateTemplateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	tmpl, err := h.store.Create(r.Context(), actor, req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	h.logger.Info("template created", "template_id", tmpl.ID, "actor_id", actor.ID)
	httputil.WriteCreated(w, httputil.Payload{"template": tmpl})
}

func (h *Handlers) getTemplate(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireManager(w, r); !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	tmpl, err := h.store.Get(r.Context(), id)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, httputil.Payload{"template": tmpl})
}

func (h *Handlers) updateTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireManager(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req UpdateTemplateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	tmpl, err := h.store.Update(r.Context(), id, req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	h.logger.Info("template updated", "template_id", id, "actor_id", actor.ID)
	httputil.WriteSuccess(w, httputil.Payload{"template": tmpl})
}

func (h *Handlers) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireManager(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	h.logger.Info("template deleted", "template_id", id, "actor_id", actor.ID)
	httputil.WriteSuccess(w, httputil.Payload{"deleted": id})
}

func (h *Handlers) applyTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireManager(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req ApplyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.service.Apply(r.Context(), actor, id, req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if result.AppliedUserIDs == nil {
		result.AppliedUserIDs = []int64{}
	}

	if sess, ok := session.FromContext(r.Context()); ok && h.flash != nil {
		if err := h.flash.SetFlash(r.Context(), sess.Token, result.Message); err != nil {
			h.logger.Warn("failed to record flash message", "error", err)
		}
	}

	httputil.WriteSuccess(w, httputil.Payload{
		"template_id":      result.TemplateID,
		"applied_user_ids": result.AppliedUserIDs,
		"failures":         result.Failures,
		"message":          result.Message,
	})
}
