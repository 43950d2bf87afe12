// Package server wires HTTP handlers into a chi router for the chatwire
// application via routing helpers.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SetupRoutes configures and returns the application router with handlers
// for the health check and the WebSocket endpoint.
func SetupRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", HealthHandler)
	r.Get("/ws", WebSocketHandler)
	return r
}
