package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/api/handlers"
	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/api/middleware"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", h.Health)
	r.Get("/version", h.GetVersion)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Conversation understanding
		r.Post("/classify", h.Classify)
		r.Post("/plan", h.Plan)

		// Agents
		r.Route("/agents", func(r chi.Router) {
			r.Get("/", h.ListAgents)
			r.Post("/dispatch", h.DispatchAgents)
		})

		// Aggregation flow
		r.Post("/flows/run", h.RunFlow)

		// Planned actions
		r.Route("/actions", func(r chi.Router) {
			r.Post("/", h.CreateAction)
			r.Get("/pending", h.ListPendingActions)
			r.Route("/{actionId}", func(r chi.Router) {
				r.Get("/", h.GetAction)
				r.Post("/approve", h.ApproveAction)
				r.Post("/execute", h.ExecuteAction)
			})
		})

		// Audit trail
		r.Get("/audit", h.ListAudit)

		// Tools
		r.Route("/tools", func(r chi.Router) {
			r.Get("/", h.ListTools)
			r.Post("/invoke", h.InvokeTool)
		})
	})

	return r
}
