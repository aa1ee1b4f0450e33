/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/requests/*   Request lifecycle and transitions
  /api/users/*      Per-user views (requests, balances)
  /api/admin/*      Chain and balance configuration
  /api/audit        Audit log
  /healthz          Liveness probe

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.CreateRequest)
			r.Post("/batch", h.ProcessBatch)
			r.Get("/pending", h.ListPending)
			r.Get("/{id}", h.GetRequest)
			r.Post("/{id}/act", h.Act)
			r.Post("/{id}/override", h.Override)
			r.Post("/{id}/cancel", h.Cancel)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/{id}/requests", h.ListUserRequests)
			r.Get("/{id}/balances", h.ListBalances)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/balances", h.SeedBalance)
			r.Post("/assignments", h.CreateAssignment)
			r.Post("/workflows", h.RegisterWorkflow)
			r.Get("/workflows", h.ListWorkflows)
		})

		r.Get("/audit", h.QueryAudit)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
