package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all bond valuation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleListBonds)
	r.Get("/top", h.HandleTopBonds)
	r.Get("/best", h.HandleBestBond)
	r.Get("/{secid}/schedule", h.HandleSchedule)
	r.Post("/refresh", h.HandleRefresh)
}
