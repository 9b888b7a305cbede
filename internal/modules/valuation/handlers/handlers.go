package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/bondwatch/internal/domain"
	"github.com/aristath/bondwatch/internal/modules/ranking"
	"github.com/aristath/bondwatch/internal/modules/valuation"
)

// Refresher triggers a full fetch-and-valuate cycle on demand,
// bypassing the trading calendar gate
type Refresher interface {
	RunNow() error
}

// Handler handles bond valuation HTTP requests
type Handler struct {
	store     *valuation.Store
	svc       *valuation.Service
	scoring   ranking.Scoring
	topN      int
	refresher Refresher
	log       zerolog.Logger
}

// NewHandler creates a new valuation handler
func NewHandler(
	store *valuation.Store,
	svc *valuation.Service,
	scoring ranking.Scoring,
	topN int,
	refresher Refresher,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		store:     store,
		svc:       svc,
		scoring:   scoring,
		topN:      topN,
		refresher: refresher,
		log:       log.With().Str("handler", "bonds").Logger(),
	}
}

// bondView is the wire representation of one valued bond
type bondView struct {
	SecID           string             `json:"secid"`
	ISIN            string             `json:"isin,omitempty"`
	Name            string             `json:"name,omitempty"`
	Sector          domain.Sector      `json:"sector"`
	Price           float64            `json:"price"`
	CleanPrice      float64            `json:"clean_price"`
	AccruedInterest float64            `json:"accrued_interest"`
	Volume          float64            `json:"volume"`
	MaturityDate    string             `json:"maturity_date"`
	Years           float64            `json:"years_to_maturity"`
	Yield           *float64           `json:"yield,omitempty"`
	YieldStatus     domain.YieldStatus `json:"yield_status"`
	Score           float64            `json:"score"`
}

func (h *Handler) view(b *domain.Bond, asOf time.Time) bondView {
	return bondView{
		SecID:           b.SecID,
		ISIN:            b.ISIN,
		Name:            b.Name,
		Sector:          b.Sector,
		Price:           b.Price,
		CleanPrice:      b.CleanPrice(),
		AccruedInterest: b.AccruedInterest,
		Volume:          b.Volume,
		MaturityDate:    b.MaturityDate.Format("2006-01-02"),
		Years:           b.YearsToMaturity(asOf),
		Yield:           b.Yield,
		YieldStatus:     b.YieldStatus,
		Score:           h.svc.Score(b, h.scoring),
	}
}

func (h *Handler) views(bonds []*domain.Bond, asOf time.Time) []bondView {
	out := make([]bondView, 0, len(bonds))
	for _, b := range bonds {
		out = append(out, h.view(b, asOf))
	}
	return out
}

// result returns the latest cycle or writes 503 when none has run yet
func (h *Handler) result(w http.ResponseWriter) *valuation.Result {
	res := h.store.Current()
	if res == nil {
		http.Error(w, "No valuation run completed yet", http.StatusServiceUnavailable)
		return nil
	}
	return res
}

// HandleListBonds handles GET / - the screened, ranked universe
func (h *Handler) HandleListBonds(w http.ResponseWriter, r *http.Request) {
	res := h.result(w)
	if res == nil {
		return
	}

	response := map[string]interface{}{
		"run_id":   res.RunID,
		"as_of":    res.AsOf,
		"universe": len(res.Universe),
		"screened": len(res.Screened),
		"summary":  res.Summary,
		"bonds":    h.views(res.Screened, res.AsOf),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleTopBonds handles GET /top?n= - the n best bonds
func (h *Handler) HandleTopBonds(w http.ResponseWriter, r *http.Request) {
	res := h.result(w)
	if res == nil {
		return
	}

	n := h.topN
	if nStr := r.URL.Query().Get("n"); nStr != "" {
		parsed, err := strconv.Atoi(nStr)
		if err != nil || parsed < 1 || parsed > 1000 {
			http.Error(w, "Invalid n. Must be 1-1000", http.StatusBadRequest)
			return
		}
		n = parsed
	}

	top := res.Screened
	if n < len(top) {
		top = top[:n]
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.views(top, res.AsOf))
}

// HandleBestBond handles GET /best - the single best pick
func (h *Handler) HandleBestBond(w http.ResponseWriter, r *http.Request) {
	res := h.result(w)
	if res == nil {
		return
	}

	if len(res.Screened) == 0 {
		http.Error(w, "No bond passed screening", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.view(res.Screened[0], res.AsOf))
}

// HandleSchedule handles GET /{secid}/schedule - reconstructed cash flows
func (h *Handler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	res := h.result(w)
	if res == nil {
		return
	}

	secid := chi.URLParam(r, "secid")
	bond := h.store.Lookup(secid)
	if bond == nil {
		http.Error(w, "Unknown security", http.StatusNotFound)
		return
	}

	events, err := h.svc.Schedule(bond, res.AsOf)
	if err != nil {
		http.Error(w, "No cash-flow schedule for this bond", http.StatusUnprocessableEntity)
		return
	}

	response := map[string]interface{}{
		"secid":  bond.SecID,
		"as_of":  res.AsOf,
		"events": events,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleRefresh handles POST /refresh - run a cycle immediately
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		http.Error(w, "Refresh not available", http.StatusServiceUnavailable)
		return
	}

	if err := h.refresher.RunNow(); err != nil {
		h.log.Error().Err(err).Msg("Manual refresh failed")
		http.Error(w, "Refresh failed", http.StatusBadGateway)
		return
	}

	res := h.store.Current()
	response := map[string]interface{}{
		"message": "Refresh completed",
	}
	if res != nil {
		response["run_id"] = res.RunID
		response["as_of"] = res.AsOf
		response["universe"] = len(res.Universe)
		response["screened"] = len(res.Screened)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
