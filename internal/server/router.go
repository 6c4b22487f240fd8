package server

import (
	"net/http"
	"time"

	"github.com/XavierBriggs/Apollo/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter assembles the HTTP surface.
func NewRouter(h *Handler, stream *StreamHandler, authMgr *auth.Manager, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(auth.Identify(authMgr))

		// The stream holds its connection open; everything else gets the
		// standard request timeout.
		r.Get("/opportunities/stream", stream.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/opportunities", h.GetOpportunities)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Post("/opportunities/refresh", h.TriggerRefresh)
				r.Get("/opportunities/refresh/{taskID}", h.GetRefreshTask)
			})
		})
	})

	return r
}
