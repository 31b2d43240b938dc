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
  /api/requests/*     Help request lifecycle
  /api/assistants/*   Assistant directory
  /api/stylists/*     Stylist directory
  /api/services/*     Service catalog
  /api/stats          Workload overview
  /api/sweep          Manual timeout sweep

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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

	"github.com/salonhub/assist-engine/store/sqlite"
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

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Request lifecycle
		r.Route("/requests", func(r chi.Router) {
			r.Get("/", h.ListRequests)
			r.Post("/", h.CreateRequest)
			r.Get("/{id}", h.GetRequest)
			r.Post("/{id}/assign", h.AssignRequest)
			r.Post("/{id}/accept", h.AcceptRequest)
			r.Post("/{id}/decline", h.DeclineRequest)
			r.Post("/{id}/cancel", h.CancelRequest)
		})

		// Directory routes
		r.Route("/assistants", func(r chi.Router) {
			r.Get("/", h.ListUsers(sqlite.RoleAssistant))
			r.Post("/", h.CreateUser(sqlite.RoleAssistant))
			r.Get("/{id}", h.GetUser(sqlite.RoleAssistant))
			r.Put("/{id}", h.UpdateUser(sqlite.RoleAssistant))
			r.Get("/{id}/notifications", h.GetNotifications)
		})
		r.Route("/stylists", func(r chi.Router) {
			r.Get("/", h.ListUsers(sqlite.RoleStylist))
			r.Post("/", h.CreateUser(sqlite.RoleStylist))
			r.Get("/{id}", h.GetUser(sqlite.RoleStylist))
			r.Put("/{id}", h.UpdateUser(sqlite.RoleStylist))
			r.Get("/{id}/notifications", h.GetNotifications)
		})

		// Service catalog
		r.Route("/services", func(r chi.Router) {
			r.Get("/", h.ListServices)
			r.Post("/", h.CreateService)
			r.Get("/{id}", h.GetService)
		})

		// Operations
		r.Get("/stats", h.GetStats)
		r.Post("/sweep", h.RunSweep)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Assist Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Assist Engine API</h1>
<p>Round-robin assignment of salon assistants to stylist help requests.</p>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/requests">/api/requests</a> - List help requests</li>
<li><a href="/api/assistants">/api/assistants</a> - List assistants</li>
<li><a href="/api/services">/api/services</a> - List services</li>
<li><a href="/api/stats">/api/stats</a> - Workload overview</li>
</ul>
</body>
</html>`))
	})

	return r
}
