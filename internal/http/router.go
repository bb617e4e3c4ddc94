// Package http wires the server routes and middleware.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sage/internal/handlers"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Auth    handlers.Authenticator
	Queries handlers.QueryStreamer
}

// NewRouter creates the server router: the websocket endpoint plus a
// health probe.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	wsHandler := handlers.NewWSHandler(deps.Auth, deps.Queries)
	r.Method(http.MethodGet, "/ws/sage", wsHandler)
	r.Get("/health", handlers.Health)

	return r
}
