package audit

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/buzonshare/buzonshare/pkg/authz"
	"github.com/buzonshare/buzonshare/pkg/httputil"
)

// Handlers provides HTTP handlers for the activity log
type Handlers struct {
	store *Store
}

// NewHandlers creates new activity log handlers
func NewHandlers(store *Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers activity log routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/activity", h.listActivity).Methods("GET")
}

// listActivity handles GET /activity?user_id=&limit=. Superadmins only.
func (h *Handlers) listActivity(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	if actor.Role != authz.RoleSuperadmin {
		httputil.WriteDomainError(w, authz.ErrForbidden)
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 100)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	var userID *int64
	if raw := httputil.ParseQueryString(r, "user_id", ""); raw != "" {
		id, err := httputil.ParseQueryInt(r, "user_id", 0)
		if err != nil {
			httputil.WriteValidationError(w, err.Error())
			return
		}
		v := int64(id)
		userID = &v
	}

	events, err := h.store.Recent(r.Context(), userID, limit)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if events == nil {
		events = []*Event{}
	}
	httputil.WriteSuccess(w, httputil.Payload{"events": events})
}
