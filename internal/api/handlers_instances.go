package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/gold-portfolio/internal/circuitbreaker"
	apperrors "github.com/gold-portfolio/internal/errors"
	"github.com/gold-portfolio/internal/models"
	"github.com/gold-portfolio/internal/service"
	"github.com/gold-portfolio/internal/storage"
	"github.com/gold-portfolio/internal/types"
	"github.com/gold-portfolio/internal/worker"
)

const (
	defaultPriceHistoryLimit = 50
	defaultValuationWindow   = 30 * 24 * time.Hour
)

// InstanceSummary describes one configured instance
type InstanceSummary struct {
	ID           string               `json:"id"`
	State        types.RefreshState   `json:"state"`
	HasPrice     bool                 `json:"hasPrice"`
	EntryCount   int                  `json:"entryCount"`
	PersistError string               `json:"persistError,omitempty"`
	Refresh      *worker.HealthStatus `json:"refresh,omitempty"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status          string                 `json:"status"`
	Service         string                 `json:"service"`
	Instances       []InstanceSummary      `json:"instances"`
	CircuitBreakers []circuitbreaker.Stats `json:"circuitBreakers,omitempty"`
}

// PriceResponse is the body of GET /api/instances/{id}/price
type PriceResponse struct {
	InstanceID   string    `json:"instance_id"`
	Price        float64   `json:"price"`
	Currency     string    `json:"currency"`
	PricePerGram float64   `json:"price_per_gram"`
	Timestamp    time.Time `json:"timestamp"`
	FetchedAt    time.Time `json:"fetched_at"`
}

func summarize(inst *service.Instance) InstanceSummary {
	_, hasPrice := inst.Prices.Current()
	summary := InstanceSummary{
		ID:         inst.ID,
		State:      inst.Prices.State(),
		HasPrice:   hasPrice,
		EntryCount: len(inst.Ledger.List()),
	}
	if err := inst.Ledger.LastPersistError(); err != nil {
		summary.PersistError = err.Error()
	}
	if inst.Health != nil {
		status := inst.Health.Status()
		summary.Refresh = &status
	}
	return summary
}

// handleHealth handles GET /health. The status is "degraded" while any
// instance lacks a price or its last refresh failed; the code stays 200.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Service:   "gold-portfolio",
		Instances: []InstanceSummary{},
	}

	for _, inst := range s.registry.All() {
		summary := summarize(inst)
		if !summary.HasPrice || summary.PersistError != "" ||
			(summary.Refresh != nil && summary.Refresh.ConsecutiveFailures > 0) {
			resp.Status = "degraded"
		}
		resp.Instances = append(resp.Instances, summary)
	}
	if s.breakers != nil {
		resp.CircuitBreakers = s.breakers.AllStats()
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleListInstances handles GET /api/instances
func (s *Server) handleListInstances(w http.ResponseWriter, _ *http.Request) {
	out := []InstanceSummary{}
	for _, inst := range s.registry.All() {
		out = append(out, summarize(inst))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"instances": out})
}

// instance resolves {id} or writes the error
func (s *Server) instance(w http.ResponseWriter, r *http.Request) (*service.Instance, bool) {
	inst, err := s.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return nil, false
	}
	return inst, true
}

// handleGetPrice handles GET /api/instances/{id}/price
func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instance(w, r)
	if !ok {
		return
	}

	snap, ok := inst.Prices.Current()
	if !ok {
		respondError(w, apperrors.NewPriceUnavailableError("no gold price has been fetched yet"))
		return
	}

	respondJSON(w, http.StatusOK, PriceResponse{
		InstanceID:   inst.ID,
		Price:        snap.Price,
		Currency:     snap.Currency,
		PricePerGram: service.PricePerGram(snap.Price),
		Timestamp:    snap.Timestamp,
		FetchedAt:    snap.FetchedAt,
	})
}

// handleGetPortfolio handles GET /api/instances/{id}/portfolio
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instance(w, r)
	if !ok {
		return
	}

	pv, err := inst.Portfolio()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pv)
}

// handleGetEntryValuation handles GET /api/instances/{id}/entries/{entryId}/valuation
func (s *Server) handleGetEntryValuation(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instance(w, r)
	if !ok {
		return
	}

	v, err := inst.EntryValuation(mux.Vars(r)["entryId"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// handleGetSensors handles GET /api/instances/{id}/sensors
func (s *Server) handleGetSensors(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instance(w, r)
	if !ok {
		return
	}

	metrics, err := inst.Metrics()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]models.Metric{"sensors": metrics})
}

// handleGetPriceHistory handles GET /api/instances/{id}/price-history?limit=N
func (s *Server) handleGetPriceHistory(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instance(w, r)
	if !ok {
		return
	}

	if s.priceHistory == nil {
		respondError(w, apperrors.NewServiceUnavailableError("price history"))
		return
	}

	limit := defaultPriceHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > storage.MaxPriceHistoryLimit {
			respondError(w, apperrors.NewValidationError("limit",
				"must be an integer between 1 and "+strconv.Itoa(storage.MaxPriceHistoryLimit)))
			return
		}
		limit = n
	}

	records, err := s.priceHistory.ListRecent(r.Context(), inst.ID, limit)
	if err != nil {
		respondError(w, apperrors.NewPersistenceError("list price history", err))
		return
	}
	if records == nil {
		records = []models.PriceHistoryRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"instance_id": inst.ID,
		"records":     records,
	})
}

// handleGetValuationHistory handles
// GET /api/instances/{id}/valuation-history?from=RFC3339&to=RFC3339.
// The window defaults to the last 30 days.
func (s *Server) handleGetValuationHistory(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instance(w, r)
	if !ok {
		return
	}

	if s.valuations == nil {
		respondError(w, apperrors.NewServiceUnavailableError("valuation history"))
		return
	}

	query := r.URL.Query()
	to := time.Now().UTC()
	if raw := query.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, apperrors.NewValidationError("to", "must be an RFC3339 timestamp"))
			return
		}
		to = t
	}
	from := to.Add(-defaultValuationWindow)
	if raw := query.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, apperrors.NewValidationError("from", "must be an RFC3339 timestamp"))
			return
		}
		from = t
	}
	if from.After(to) {
		respondError(w, apperrors.NewValidationError("from", "must not be after to"))
		return
	}

	records, err := s.valuations.ListRange(r.Context(), inst.ID, from, to)
	if err != nil {
		respondError(w, apperrors.NewPersistenceError("list valuation history", err))
		return
	}
	if records == nil {
		records = []models.ValuationRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"instance_id": inst.ID,
		"from":        from,
		"to":          to,
		"records":     records,
	})
}
