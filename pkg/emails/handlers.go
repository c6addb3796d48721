package emails

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/buzonshare/buzonshare/pkg/authz"
	"github.com/buzonshare/buzonshare/pkg/httputil"
)

// Handlers provides HTTP handlers for the email catalog
type Handlers struct {
	store    *Store
	resolver *authz.Resolver
}

// NewHandlers creates new catalog handlers
func NewHandlers(store *Store, resolver *authz.Resolver) *Handlers {
	return &Handlers{store: store, resolver: resolver}
}

// RegisterRoutes registers catalog routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/emails", h.listEmails).Methods("GET")
	router.HandleFunc("/emails/delegated", h.listDelegated).Methods("GET")
}

// listEmails handles GET /emails?q=&limit=&offset=. Admin actors only
// see their delegated scope; superadmins see the whole catalog.
func (h *Handlers) listEmails(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	if actor.Role != authz.RoleSuperadmin && actor.Role != authz.RoleAdmin {
		httputil.WriteDomainError(w, authz.ErrForbidden)
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

	scope, err := h.resolver.AllowedScope(r.Context(), actor)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	list, hasMore, err := h.store.List(r.Context(), scope, query, limit, offset)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if list == nil {
		list = []*AuthorizedEmail{}
	}

	httputil.WriteSuccess(w, httputil.Payload{
		"emails":   list,
		"has_more": hasMore,
		"offset":   offset,
	})
}

// listDelegated handles GET /emails/delegated: the actor's own
// delegation rows, for showing the scope in the UI.
func (h *Handlers) listDelegated(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	if actor.Role != authz.RoleAdmin {
		httputil.WriteDomainError(w, authz.ErrForbidden)
		return
	}

	list, err := h.store.ListDelegated(r.Context(), actor.ID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if list == nil {
		list = []*AuthorizedEmail{}
	}

	// Zero rows means the admin is unrestricted, not scoped to nothing.
	httputil.WriteSuccess(w, httputil.Payload{
		"emails":       list,
		"unrestricted": len(list) == 0,
	})
}
