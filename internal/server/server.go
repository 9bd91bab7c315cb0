// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the wiring layer: it connects the store, the services,
// the handlers and the middleware, and owns graceful shutdown.
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go: config.Load → logger.New → OpenStore → server.New → Start
//	server.New: store → IdentityService / ContentService → handlers → routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/instalitre/internal/auth"
	"github.com/sakif/instalitre/internal/config"
	"github.com/sakif/instalitre/internal/handler"
	"github.com/sakif/instalitre/internal/imaging/canonical"
	"github.com/sakif/instalitre/internal/metrics"
	"github.com/sakif/instalitre/internal/middleware"
	"github.com/sakif/instalitre/internal/repository"
	"github.com/sakif/instalitre/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the store: Start closes it after the HTTP server has
// drained.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	store   repository.Store
	metrics *metrics.Metrics
}

// New assembles the dependency chain on top of an open store.
//
// Each layer only receives what it needs:
//   - services get repository interfaces, never a concrete backend
//   - handlers get services, never the store
func New(cfg *config.Config, store repository.Store, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		store:   store,
		metrics: metrics.New(),
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                → store ping
//	GET    /metrics                → Prometheus
//	POST   /api/register           → create account
//	POST   /api/login              → issue session cookie
//	POST   /api/logout             → clear session cookie
//	GET    /api/me                 → current user        (auth)
//	POST   /api/posts              → publish             (auth)
//	GET    /api/posts              → list, newest first  (auth)
//	GET    /api/posts/{id}/image   → PNG bytes           (auth)
//
// MIDDLEWARE ORDER MATTERS: RequestID runs first so the logger can print it,
// and Recoverer sits inside the logger so a panic is logged as a 500.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	passwords, err := auth.NewPasswordServiceWithCost(s.config.BcryptCost)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.SessionTTL)
	if err != nil {
		return err
	}

	encoder := canonical.New(canonical.Config{Workers: s.config.ImageWorkers}, s.logger)

	contentCfg := service.DefaultContentConfig()
	contentCfg.ListRetries = s.config.ListRetries

	identity := service.NewIdentityService(s.store, passwords, s.metrics, s.logger)
	content := service.NewContentService(s.store, s.store, encoder, contentCfg, s.metrics, s.logger)

	authHandler := handler.NewAuthHandler(identity, tokens, s.config.SecureCookie, s.logger)
	postHandler := handler.NewPostHandler(content, s.config.MaxUploadBytes, s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.config.Backend, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
			r.Post("/posts", postHandler.HandlePublish)
			r.Get("/posts", postHandler.HandleList)
			r.Get("/posts/{id}/image", postHandler.HandleImage)
		})
	})

	return nil
}

// Start serves HTTP until SIGINT or SIGTERM, then shuts down gracefully:
//  1. stop accepting new connections
//  2. wait up to 30s for in-flight requests
//  3. close the store
func (s *Server) Start() error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second, // uploads
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("backend", s.config.Backend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
