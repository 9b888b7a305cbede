package snapshots

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// defaultRunLimit - runs returned by the list endpoint when no limit is given
const defaultRunLimit = 20

// Handler handles snapshot HTTP requests
type Handler struct {
	repo *Repository
	log  zerolog.Logger
}

// NewHandler creates a new snapshots handler
func NewHandler(repo *Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "snapshots").Logger(),
	}
}

// RegisterRoutes registers all snapshot routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleListRuns)
	r.Get("/{id}/picks", h.HandleRunPicks)
}

// HandleListRuns handles GET /?limit= - recent valuation runs, newest first
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > 1000 {
			http.Error(w, "Invalid limit. Must be 1-1000", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := h.repo.RecentRuns(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list valuation runs")
		http.Error(w, "Failed to retrieve runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []Run{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

// HandleRunPicks handles GET /{id}/picks - the ranked picks of one run
func (h *Handler) HandleRunPicks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	picks, err := h.repo.PicksForRun(id)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to load picks")
		http.Error(w, "Failed to retrieve picks", http.StatusInternalServerError)
		return
	}
	if len(picks) == 0 {
		http.Error(w, "Unknown run", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(picks)
}
