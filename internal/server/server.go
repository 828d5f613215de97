// Package server exposes the keyword pipeline over HTTP: upload, clean,
// grouping, overrides, and approvals, all scoped to an organization.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/brightline/composer/internal/grouping"
	"github.com/brightline/composer/internal/pools"
)

// orgHeader carries the caller's organization scope; requests without
// it fall back to the configured default organization.
const orgHeader = "X-Organization-ID"

// Server holds the HTTP surface and its collaborators.
type Server struct {
	router     chi.Router
	pools      *pools.Service
	planner    *grouping.Planner
	defaultOrg string
}

// New wires the router. allowedOrigins feeds the CORS middleware.
func New(poolSvc *pools.Service, planner *grouping.Planner, defaultOrg string, allowedOrigins []string) *Server {
	s := &Server{
		pools:      poolSvc,
		planner:    planner,
		defaultOrg: defaultOrg,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", orgHeader},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/pools", func(r chi.Router) {
		r.Get("/", s.handleListPools)
		r.Post("/keywords", s.handleUploadKeywords)
		r.Post("/upload", s.handleUploadFile)

		r.Route("/{poolID}", func(r chi.Router) {
			r.Get("/", s.handleGetPool)
			r.Delete("/keywords", s.handleDeleteKeywords)
			r.Post("/clean", s.handleApplyClean)
			r.Post("/approve-clean", s.handleApproveClean)
			r.Post("/unapprove-clean", s.handleUnapproveClean)
			r.Post("/grouping-plan", s.handleGroupingPlan)
			r.Get("/groups", s.handleGetGroups)
			r.Post("/overrides", s.handleAddOverride)
			r.Delete("/overrides", s.handleResetOverrides)
			r.Post("/approve-groups", s.handleApproveGroups)
			r.Post("/unapprove-groups", s.handleUnapproveGroups)
		})
	})

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// orgID resolves the caller's organization scope.
func (s *Server) orgID(r *http.Request) string {
	if org := r.Header.Get(orgHeader); org != "" {
		return org
	}
	return s.defaultOrg
}
