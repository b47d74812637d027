package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"tramboard/internal/domain"
	"tramboard/internal/store"
)

type ReadinessChecker interface {
	IsReady() bool
}

type HealthHandler struct {
	ready ReadinessChecker
	store *store.Store
}

func NewHealthHandler(ready ReadinessChecker, s *store.Store) *HealthHandler {
	return &HealthHandler{
		ready: ready,
		store: s,
	}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready      bool          `json:"ready"`
	Status     domain.Status `json:"status"`
	Departures int           `json:"departures"`
	ServerTime time.Time     `json:"serverTime"`
}

// Readyz reports ready once the first fetch has completed. A failed first
// fetch still counts: the board then shows its error state.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ready := h.ready.IsReady()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ReadyResponse{
		Ready:      ready,
		Status:     h.store.Status(),
		Departures: h.store.Count(),
		ServerTime: time.Now(),
	})
}
