package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"checkbook-calc/internal/calculator"
	"checkbook-calc/internal/desk"
	"checkbook-calc/internal/handlers"
	"checkbook-calc/internal/observability"
)

// NewRouter wires the middleware chain, the stateless engine endpoints and,
// when api is non-nil, the session, history and settings endpoints.
func NewRouter(api *desk.API) http.Handler {

	r := chi.NewRouter()

	r.Use(observability.RequestIDMiddleware)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.LoggingMiddleware)

	r.Get("/health", handlers.Health)

	r.Handle("/metrics", observability.PrometheusHandler())

	calculator.RegisterRoutes(r)

	if api != nil {
		api.RegisterRoutes(r)
	}

	return r
}
