package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/homegate/pkg/auth"
	"github.com/platinummonkey/homegate/pkg/directory"
	"github.com/platinummonkey/homegate/pkg/httputil"
	"github.com/platinummonkey/homegate/pkg/identity"
	"github.com/platinummonkey/homegate/pkg/middleware"
	"github.com/platinummonkey/homegate/pkg/observability"
	"github.com/platinummonkey/homegate/pkg/sso"
	"github.com/prometheus/client_golang/prometheus"
)

// UserStore is the directory surface used by the handlers
type UserStore interface {
	directory.Directory
	Get(ctx context.Context, id string) (*directory.User, error)
	List(ctx context.Context, limit int) ([]*directory.User, error)
	Summary(ctx context.Context) (*directory.Summary, error)
	SetRole(ctx context.Context, id string, role auth.Role) error
}

// KeyManager issues and revokes API keys
type KeyManager interface {
	CreateAPIKey(ctx context.Context, ownerEmail string) (*auth.APIKeyRecord, error)
	DeactivateAPIKey(ctx context.Context, key string) error
	SetAPIKeyStatus(ctx context.Context, ownerEmail string, active bool) error
}

// Config wires a Server
type Config struct {
	Providers  *sso.Registry
	States     sso.StateStore
	Resolver   *identity.Resolver
	Users      UserStore
	RolePolicy *directory.RolePolicy
	// APIKeys is optional; admin key routes are not registered without it
	APIKeys KeyManager

	// FrontendURL is the public origin used to build OAuth redirect URIs
	FrontendURL   string
	SecureCookies bool

	Logger       *observability.Logger
	Audit        *auth.AuditLogger
	Metrics      *observability.Metrics
	Registry     *prometheus.Registry
	Health       *observability.HealthChecker
	LoginLimiter middleware.Limiter
}

// Server holds the HTTP router and its dependencies
type Server struct {
	cfg    Config
	router *mux.Router
}

// NewServer creates a server and registers every route
func NewServer(cfg Config) (*Server, error) {
	if cfg.Providers == nil || cfg.States == nil || cfg.Resolver == nil || cfg.Users == nil {
		return nil, errors.New("providers, states, resolver and users are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if cfg.Audit == nil {
		cfg.Audit = auth.NewAuditLogger(cfg.Logger)
	}

	s := &Server{cfg: cfg, router: mux.NewRouter()}
	s.setupRoutes()
	return s, nil
}

// Handler returns the router wrapped in the request middleware chain
func (s *Server) Handler() http.Handler {
	return httputil.Chain(
		httputil.RequestIDMiddleware(s.cfg.Logger),
		httputil.RecoveryMiddleware,
		httputil.LoggingMiddleware,
	)(s.router)
}

func (s *Server) setupRoutes() {
	if s.cfg.Health != nil {
		s.router.HandleFunc("/health/live", s.cfg.Health.Liveness).Methods(http.MethodGet)
		s.router.HandleFunc("/health/ready", s.cfg.Health.Readiness).Methods(http.MethodGet)
	}
	if s.cfg.Registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.cfg.Registry)).Methods(http.MethodGet)
	}

	authn := middleware.NewAuthMiddleware(s.cfg.Resolver, s.cfg.SecureCookies)

	authRouter := s.router.PathPrefix("/auth").Subrouter()
	authRouter.Use(observability.HTTPMetricsMiddleware(s.cfg.Metrics))
	authRouter.HandleFunc("/providers", s.listProviders).Methods(http.MethodGet)

	limited := authRouter.NewRoute().Subrouter()
	if s.cfg.LoginLimiter != nil {
		limited.Use(middleware.RateLimit(s.cfg.LoginLimiter))
	}
	limited.HandleFunc("/login/{provider}", s.login).Methods(http.MethodGet)
	limited.HandleFunc("/callback/{provider}", s.callback).Methods(http.MethodGet)

	session := authRouter.NewRoute().Subrouter()
	session.Use(authn.Handler)
	session.HandleFunc("/header-login", s.headerLogin).Methods(http.MethodGet)
	session.HandleFunc("/logout", s.logout).Methods(http.MethodPost)
	session.Handle("/me",
		middleware.RequireAuthenticated(s.cfg.Audit)(http.HandlerFunc(s.me))).Methods(http.MethodGet)

	admin := s.router.PathPrefix("/admin").Subrouter()
	admin.Use(observability.HTTPMetricsMiddleware(s.cfg.Metrics))
	admin.Use(authn.Handler)
	admin.Use(middleware.RequireRole(auth.RoleAdmin, s.cfg.Audit))
	admin.HandleFunc("/users", s.listUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/summary", s.userSummary).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}/role", s.setUserRole).Methods(http.MethodPut)
	if s.cfg.APIKeys != nil {
		admin.HandleFunc("/api-keys", s.createAPIKey).Methods(http.MethodPost)
		admin.HandleFunc("/api-keys/deactivate", s.deactivateAPIKey).Methods(http.MethodPost)
		admin.HandleFunc("/api-keys/status", s.setAPIKeyStatus).Methods(http.MethodPut)
	}
}
