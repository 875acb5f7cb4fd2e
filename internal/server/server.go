// Package server is the dashchat HTTP and live channel surface.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"dashchat/internal/auth"
	"dashchat/internal/middleware"
	"dashchat/internal/models"
	"dashchat/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Store is the part of the database the HTTP layer reads directly.
type Store interface {
	service.Directory
	Ping(ctx context.Context) error
}

// Dependencies are the components a Server routes requests to.
type Dependencies struct {
	Config    *models.Config
	Logger    *logrus.Logger
	Store     Store
	Tokens    *auth.TokenIssuer
	Auth      *service.AuthService
	Messages  *service.MessageService
	Documents *service.DocumentService
	Hub       *service.Hub
	Limiter   *RateLimiter
	// Verbose enables masked request and response body logging.
	Verbose bool
}

type Server struct {
	router    *mux.Router
	logger    *logrus.Logger
	config    *models.Config
	db        Store
	tokens    *auth.TokenIssuer
	auth      *service.AuthService
	messages  *service.MessageService
	documents *service.DocumentService
	hub       *service.Hub
	limiter   *RateLimiter
	verbose   bool
	server    *http.Server
}

func NewServer(deps Dependencies) *Server {
	limiter := deps.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(deps.Config.Server.RateLimitPerMinute, deps.Config.Server.RateLimitBurst)
	}
	s := &Server{
		router:    mux.NewRouter(),
		logger:    deps.Logger,
		config:    deps.Config,
		db:        deps.Store,
		tokens:    deps.Tokens,
		auth:      deps.Auth,
		messages:  deps.Messages,
		documents: deps.Documents,
		hub:       deps.Hub,
		limiter:   limiter,
		verbose:   deps.Verbose,
	}

	s.setupRoutes()

	cfg := deps.Config.Server
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeoutSec) * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return service.WithVerbose(context.Background(), s.verbose)
		},
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger))
	if s.verbose {
		s.router.Use(middleware.DetailedLoggingMiddleware(s.logger, middleware.DefaultDetailedLoggingConfig()))
	}
	s.router.Use(securityHeaders)

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleLive()).Methods(http.MethodGet)

	rateLimited := s.limiter.Middleware(s.logger)
	s.router.Handle("/auth/login", rateLimited(s.handleLogin())).Methods(http.MethodPost)

	api := s.router.NewRoute().Subrouter()
	api.Use(rateLimited)
	api.Use(middleware.RequireAuth(s.tokens, s.logger))

	api.HandleFunc("/companies", s.handleListCompanies()).Methods(http.MethodGet)
	api.HandleFunc("/users", s.handleListUsers()).Methods(http.MethodGet)

	api.HandleFunc("/messages", s.handleListMessages()).Methods(http.MethodGet)
	api.HandleFunc("/messages", s.handleSendMessage()).Methods(http.MethodPost)
	api.HandleFunc("/messages/read", s.handleMarkRead()).Methods(http.MethodPost)
	api.HandleFunc("/messages/{id}/status", s.handleUpdateStatus()).Methods(http.MethodPatch)

	api.HandleFunc("/tasks/{taskId}/documents", s.handleListDocuments()).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{taskId}/documents", s.handleUploadDocument()).Methods(http.MethodPost)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Infof("Starting server on port %d", s.config.Server.Port)
	return s.server.ListenAndServe()
}

// Shutdown closes live connections first; http.Server.Shutdown does not track
// hijacked websocket connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.server.Shutdown(ctx)
}
