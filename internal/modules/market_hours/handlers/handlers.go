package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/bondwatch/internal/modules/market_hours"
)

// Handler handles market hours HTTP requests
type Handler struct {
	svc *market_hours.Service
	log zerolog.Logger
}

// NewHandler creates a new market hours handler
func NewHandler(svc *market_hours.Service, log zerolog.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log.With().Str("handler", "market_hours").Logger(),
	}
}

// HandleStatus handles GET /status - current trading calendar state
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.svc.Status())
}
