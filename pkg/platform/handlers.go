package platform

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/buzonshare/buzonshare/pkg/authz"
	"github.com/buzonshare/buzonshare/pkg/httputil"
)

// Handlers exposes the platform catalog and subject grants over HTTP.
type Handlers struct {
	store  *Store
	logger *slog.Logger
}

// NewHandlers creates platform handlers
func NewHandlers(store *Store, logger *slog.Logger) *Handlers {
	return &Handlers{store: store, logger: logger}
}

// RegisterRoutes registers platform routes on the router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/platforms", h.listPlatforms).Methods("GET")
	router.HandleFunc("/platforms", h.createPlatform).Methods("POST")
	router.HandleFunc("/users/{id}/platforms", h.userGrants).Methods("GET")
	router.HandleFunc("/users/{id}/platforms/{platformID}", h.replaceGrants).Methods("PUT")
}

func (h *Handlers) listPlatforms(w http.ResponseWriter, r *http.Request) {
	if _, ok := authz.ActorFromContext(r.Context()); !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	list, err := h.store.ListPlatforms(r.Context())
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if list == nil {
		list = []*Platform{}
	}
	httputil.WriteSuccess(w, httputil.Payload{"platforms": list})
}

func (h *Handlers) createPlatform(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	p, err := h.store.CreatePlatform(r.Context(), actor, req.Name)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	h.logger.Info("platform created", "platform_id", p.ID, "name", p.Name, "actor_id", actor.ID)
	httputil.WriteCreated(w, httputil.Payload{"platform": p})
}

func (h *Handlers) userGrants(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	targetUserID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	grants, err := h.store.UserGrants(r.Context(), actor, targetUserID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if grants == nil {
		grants = []*SubjectGrant{}
	}
	httputil.WriteSuccess(w, httputil.Payload{"grants": grants})
}

func (h *Handlers) replaceGrants(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	targetUserID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	platformID, ok := httputil.ParsePathInt64OrError(w, r, "platformID")
	if !ok {
		return
	}

	var req ReplaceGrantsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	keywords, err := h.store.ReplaceGrants(r.Context(), actor, targetUserID, platformID, req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if keywords == nil {
		keywords = []string{}
	}

	httputil.WriteSuccess(w, httputil.Payload{"keywords": keywords})
}
