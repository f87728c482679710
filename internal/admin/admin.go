// Package admin exposes the maintenance HTTP API: record lookups, bucket
// listings, orphan reconciliation and manual archival, plus health and
// metrics endpoints. It binds to a private address and is not meant for
// end-user traffic.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/coldkeep/coldkeep/internal/config"
	"github.com/coldkeep/coldkeep/internal/lifecycle"
	"github.com/coldkeep/coldkeep/internal/logging/audit"
	"github.com/coldkeep/coldkeep/internal/metrics"
)

// Server is the maintenance HTTP API.
type Server struct {
	manager  *lifecycle.Manager
	cfg      *config.Config
	verifier *TokenVerifier
	audit    *audit.Logger
	router   chi.Router
	server   *http.Server
	addr     net.Addr
}

// NewServer wires the API routes over a lifecycle manager. Health and
// metrics are open; everything under /api/v1 requires a bearer token
// signed with admin.auth_secret.
func NewServer(cfg *config.Config, manager *lifecycle.Manager) *Server {
	s := &Server{
		manager:  manager,
		cfg:      cfg,
		verifier: NewTokenVerifier(cfg.Admin.AuthSecret),
		audit:    audit.NewLogger(log.Logger),
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/files", s.handleListFiles)
		r.Get("/files/{id}", s.handleGetFile)
		r.Get("/files/{id}/url", s.handleFileURL)
		r.Get("/objects", s.handleListObjects)
		r.Get("/orphans", s.handleListOrphans)
		r.Post("/orphans/delete", s.handleDeleteOrphans)
		r.Post("/orphans/adopt", s.handleAdoptOrphans)
		r.Post("/archive", s.handleArchive)
	})

	s.router = r
	return s
}

// ServeHTTP makes the server mountable in tests and other muxes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start binds admin.listen and serves in the background. The bind happens
// synchronously so a bad address fails the daemon at startup.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Admin.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Admin.Listen, err)
	}
	s.addr = ln.Addr()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Admin server failed")
		}
	}()

	log.Info().Str("addr", s.addr.String()).Msg("Admin API listening")
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}
