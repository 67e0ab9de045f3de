package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires the handler's routes behind CORS for allowedOrigins
func NewRouter(h *Handler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/presets", h.GetPresets)
		r.Put("/preset", h.SelectPreset)

		r.Get("/session", h.GetSession)
		r.Post("/session/{action}", h.SessionAction)

		r.Post("/samples", h.PostSamples)

		r.Get("/history", h.GetHistory)
		r.Post("/history/export", h.ExportHistory)
	})

	return r
}
