package session

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/buzonshare/buzonshare/pkg/audit"
	"github.com/buzonshare/buzonshare/pkg/authz"
	"github.com/buzonshare/buzonshare/pkg/config"
	"github.com/buzonshare/buzonshare/pkg/httputil"
	"github.com/buzonshare/buzonshare/pkg/observability"
	"github.com/buzonshare/buzonshare/pkg/users"
)

// Handlers implements login and logout.
type Handlers struct {
	store   *Store
	users   *users.Store
	cfg     config.SessionConfig
	audit   audit.Logger
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewHandlers creates session handlers
func NewHandlers(store *Store, userStore *users.Store, cfg config.SessionConfig, auditLog audit.Logger, metrics *observability.Metrics, logger *slog.Logger) *Handlers {
	return &Handlers{
		store:   store,
		users:   userStore,
		cfg:     cfg,
		audit:   auditLog,
		metrics: metrics,
		logger:  logger,
	}
}

// RegisterRoutes registers session routes on the router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/login", h.login).Methods("POST")
	router.HandleFunc("/logout", h.logout).Methods("POST")
	router.HandleFunc("/me", h.me).Methods("GET")
	router.HandleFunc("/flash", h.flash).Methods("GET")
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Username, "username") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.metrics.LoginsTotal.WithLabelValues("failure").Inc()
		h.audit.Log(r.Context(), nil, audit.EventUserLogin, audit.StatusFailure, map[string]interface{}{
			"username": req.Username,
		})
		httputil.WriteUnauthorized(w, "invalid credentials")
		return
	}

	sess, err := h.store.Create(r.Context(), user.ID, user.Username, user.Role)
	if err != nil {
		h.logger.Error("failed to create session", "error", err, "user_id", user.ID)
		httputil.WriteDomainError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(h.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	h.metrics.LoginsTotal.WithLabelValues("success").Inc()
	h.metrics.SessionsActive.Inc()
	h.audit.Log(r.Context(), &user.ID, audit.EventUserLogin, audit.StatusSuccess, map[string]interface{}{
		"username": user.Username,
	})
	h.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)

	httputil.WriteSuccess(w, httputil.Payload{
		"user": httputil.Payload{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
		},
	})
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(h.cfg.CookieName)
	if err == nil && cookie.Value != "" {
		if err := h.store.Delete(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("failed to delete session", "error", err)
		} else {
			h.metrics.SessionsActive.Dec()
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	httputil.WriteSuccess(w, httputil.Payload{})
}

func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	user, err := h.users.Get(r.Context(), actor.ID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, httputil.Payload{"user": user})
}

// flash pops the pending outcome message for the current session so the
// UI can show it once after a redirect.
func (h *Handlers) flash(w http.ResponseWriter, r *http.Request) {
	sess, ok := FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	msg, err := h.store.PopFlash(r.Context(), sess.Token)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, httputil.Payload{"message": msg})
}
