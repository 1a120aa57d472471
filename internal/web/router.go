package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oncallhq/mattersend/internal/alias"
	"github.com/oncallhq/mattersend/internal/config"
	"github.com/oncallhq/mattersend/internal/dispatch"
)

// NewRouter sets up all routes and returns the http.Handler.
func NewRouter(cfg *config.Config, dispatcher *dispatch.Dispatcher, aliases *alias.Store, registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	handlers := NewHandlers(dispatcher, aliases)
	health := NewHealthHandler(len(cfg.Instances))

	// Public routes
	r.Get("/healthz", health.ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// API routes, guarded by the shared bearer token
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.APITokenHash))

		r.Post("/api/v1/events", handlers.PostEvent)

		r.Put("/api/v1/aliases/{user}", handlers.PutAlias)
		r.Get("/api/v1/aliases/{user}", handlers.GetAlias)
		r.Delete("/api/v1/aliases/{user}", handlers.DeleteAlias)
	})

	return r
}
