package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/buzonshare/buzonshare/pkg/assignment"
	"github.com/buzonshare/buzonshare/pkg/audit"
	"github.com/buzonshare/buzonshare/pkg/authz"
	"github.com/buzonshare/buzonshare/pkg/config"
	"github.com/buzonshare/buzonshare/pkg/emails"
	"github.com/buzonshare/buzonshare/pkg/httputil"
	"github.com/buzonshare/buzonshare/pkg/observability"
	"github.com/buzonshare/buzonshare/pkg/platform"
	"github.com/buzonshare/buzonshare/pkg/session"
	"github.com/buzonshare/buzonshare/pkg/templates"
	"github.com/buzonshare/buzonshare/pkg/users"
)

const maxBodyBytes = 1 << 20

// Server wires every handler group onto one router behind the shared
// middleware chain.
type Server struct {
	router  *mux.Router
	handler http.Handler
	server  *http.Server
	logger  *slog.Logger
}

// NewServer creates the API server and registers all routes.
func NewServer(cfg *config.Config, db *sql.DB, redisClient *redis.Client, registry *prometheus.Registry, metrics *observability.Metrics, logger *slog.Logger) *Server {
	router := mux.NewRouter()

	resolver := authz.NewResolver(db)
	auditStore := audit.NewStore(db, logger)
	userStore := users.NewStore(db, resolver)
	emailStore := emails.NewStore(db)
	engine := assignment.NewEngine(db, resolver, auditStore, metrics, logger)
	templateStore := templates.NewStore(db)
	templateService := templates.NewService(templateStore, engine, auditStore, metrics, logger)
	platformStore := platform.NewStore(db, auditStore)
	sessionStore := session.NewStore(redisClient, cfg.Session.TTL)

	// Health and metrics stay outside the session and body-limit chain.
	health := observability.NewHealthChecker(db, redisClient)
	router.HandleFunc("/healthz", health.Liveness).Methods("GET")
	router.HandleFunc("/readyz", health.Readiness).Methods("GET")
	if cfg.Observability.MetricsEnabled {
		router.Handle("/metrics", observability.MetricsHandler(registry)).Methods("GET")
	}

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(session.Middleware(sessionStore, cfg.Session.CookieName))
	apiRouter.Use(httputil.MaxBytesMiddleware(maxBodyBytes))

	session.NewHandlers(sessionStore, userStore, cfg.Session, auditStore, metrics, logger).RegisterRoutes(apiRouter)
	users.NewHandlers(userStore, logger).RegisterRoutes(apiRouter)
	emails.NewHandlers(emailStore, resolver).RegisterRoutes(apiRouter)
	assignment.NewHandlers(engine, sessionStore, logger).RegisterRoutes(apiRouter)
	templates.NewHandlers(templateStore, templateService, sessionStore, logger).RegisterRoutes(apiRouter)
	platform.NewHandlers(platformStore, logger).RegisterRoutes(apiRouter)
	audit.NewHandlers(auditStore).RegisterRoutes(apiRouter)

	handler := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(logger),
		httputil.LoggingMiddleware(logger),
		observability.HTTPMetricsMiddleware(metrics),
	)(router)

	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "buzonshare")
	}

	return &Server{
		router:  router,
		handler: handler,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
			Handler:      handler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		logger: logger,
	}
}

// ServeHTTP makes the server usable directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// HTTPServer exposes the underlying http.Server for shutdown wiring.
func (s *Server) HTTPServer() *http.Server {
	return s.server
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
