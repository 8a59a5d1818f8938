/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: zerolog logger in context, one line per request
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the dashboard frontend
  5. Identity:      X-Actor-* headers -> sales.Actor in context

ROUTE GROUPS:
  /api/reports/*    Report submission and approval
  /api/plans/*      Plan management and reconciliation
  /api/agents/*     Per-agent progress
  /api/dashboard    Director overview
  /api/rewards      Bonus ladder
  /api/audit        Audit log
  /api/drift        Plan drift monitor
  /api/scenarios/*  Demo scenarios

SECURITY NOTE:
  No authentication. The identity headers are trusted as-is; put this
  behind something that sets them.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: RequestLogger and Identity
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Logger      zerolog.Logger
	CORSOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", HeaderActorID, HeaderActorName, HeaderActorRole},
	}))
	r.Use(Identity)

	r.Route("/api", func(r chi.Router) {
		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/", h.ListReports)
			r.Post("/", h.SubmitReport)
			r.Get("/{id}", h.GetReport)
			r.Put("/{id}", h.EditReport)
			r.Delete("/{id}", h.DeleteReport)
			r.Post("/{id}/approve", h.ApproveReport)
			r.Post("/{id}/reject", h.RejectReport)
		})

		// Plan routes
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", h.ListPlans)
			r.Get("/{agentID}", h.GetPlan)
			r.Put("/{agentID}", h.PutPlan)
			r.Post("/{agentID}/reconcile", h.ReconcilePlan)
		})

		r.Get("/agents/{agentID}/progress", h.GetProgress)
		r.Get("/dashboard", h.GetDashboard)
		r.Get("/rewards", h.ListRewards)
		r.Get("/audit", h.ListAudit)
		r.With(DirectorOnly).Get("/drift", h.GetDrift)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.With(DirectorOnly).Post("/load", h.LoadScenario)
			r.With(DirectorOnly).Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
