package suppliers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers supplier endpoints. write guards mutating routes.
func (h *Handler) MountRoutes(r chi.Router, write func(http.Handler) http.Handler) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Show)
	r.Group(func(r chi.Router) {
		r.Use(write)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Post("/{id}/status", h.SetStatus)
	})
}
