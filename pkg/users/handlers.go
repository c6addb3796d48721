package users

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/buzonshare/buzonshare/pkg/authz"
	"github.com/buzonshare/buzonshare/pkg/httputil"
)

// Handlers provides HTTP handlers for user management
type Handlers struct {
	store  *Store
	logger *slog.Logger
}

// NewHandlers creates new user handlers
func NewHandlers(store *Store, logger *slog.Logger) *Handlers {
	return &Handlers{store: store, logger: logger}
}

// RegisterRoutes registers user management routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users", h.listUsers).Methods("GET")
	router.HandleFunc("/users", h.createUser).Methods("POST")
	router.HandleFunc("/users/{id}", h.getUser).Methods("GET")
	router.HandleFunc("/users/{id}", h.updateUser).Methods("PUT")
	router.HandleFunc("/users/{id}", h.deleteUser).Methods("DELETE")
}

func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	list, err := h.store.List(r.Context(), actor)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if list == nil {
		list = []*User{}
	}
	httputil.WriteSuccess(w, httputil.Payload{"users": list})
}

func (h *Handlers) createUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req CreateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.store.Create(r.Context(), actor, req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	h.logger.Info("user created",
		"user_id", user.ID,
		"role", user.Role,
		"actor_id", actor.ID,
	)
	httputil.WriteCreated(w, httputil.Payload{"user": user})
}

func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	// Visibility follows manageability, except everyone may read their
	// own record.
	if actor.ID != userID {
		if _, err := h.store.resolver.CanManage(r.Context(), actor, userID); err != nil {
			httputil.WriteDomainError(w, err)
			return
		}
	}

	user, err := h.store.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, httputil.Payload{"user": user})
}

func (h *Handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.store.Update(r.Context(), actor, userID, req); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, nil)
}

func (h *Handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), actor, userID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	h.logger.Info("user deleted", "user_id", userID, "actor_id", actor.ID)
	httputil.WriteSuccess(w, nil)
}
