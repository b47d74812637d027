package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"tramboard/internal/board"
	"tramboard/internal/domain"
	"tramboard/internal/ingestor"
	"tramboard/internal/middleware"
	"tramboard/internal/store"
	"tramboard/internal/views"
)

type Refresher interface {
	Refresh(reason string) error
}

type BoardHandler struct {
	store     *store.Store
	builder   *board.Builder
	refresher Refresher
	limiter   *middleware.RateLimiter
	wsPath    string
	logger    *slog.Logger
}

// NewBoardHandler builds the page and board endpoints. limiter guards the
// page's refresh form and may be nil.
func NewBoardHandler(s *store.Store, builder *board.Builder, refresher Refresher, limiter *middleware.RateLimiter, wsPath string, logger *slog.Logger) *BoardHandler {
	return &BoardHandler{
		store:     s,
		builder:   builder,
		refresher: refresher,
		limiter:   limiter,
		wsPath:    wsPath,
		logger:    logger.With("component", "board_handler"),
	}
}

func (h *BoardHandler) view(r *http.Request) board.View {
	tab := domain.ParseDirection(r.URL.Query().Get("tab"))
	return h.builder.Build(h.store.Snapshot(), tab)
}

// Page serves the full board. Switching tabs is a plain link; it reclassifies
// the current snapshot and never triggers a fetch.
func (h *BoardHandler) Page(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	var buf bytes.Buffer
	if err := views.RenderPage(&buf, &views.PageData{View: h.view(r), WSPath: h.wsPath}); err != nil {
		h.logger.Error("failed to render page", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// RefreshForm handles the page's refresh button and always sends the browser
// back to the tab it came from, also when the refresh was rejected.
func (h *BoardHandler) RefreshForm(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	tab := domain.ParseDirection(r.URL.Query().Get("tab"))
	defer http.Redirect(w, r, "/?tab="+tab.String(), http.StatusSeeOther)

	if h.limiter != nil {
		if ip := middleware.ClientIP(r); !h.limiter.Permit(ip) {
			h.logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			return
		}
	}
	if err := h.refresher.Refresh("manual"); err != nil {
		h.logger.Warn("manual refresh rejected", "error", err)
	}
}

func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()
	respondJSON(w, http.StatusOK, h.view(r))
}

type RefreshResponse struct {
	Status string `json:"status"`
}

func (h *BoardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	if err := h.refresher.Refresh("manual"); err != nil {
		if errors.Is(err, ingestor.ErrQueueFull) {
			respondError(w, http.StatusServiceUnavailable, "refresh queue full, try again shortly")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, RefreshResponse{Status: "accepted"})
}

type SnapshotLoader interface {
	Load(ctx context.Context, stopID string) (*domain.Snapshot, bool, error)
}

// SnapshotHandler serves the snapshot mirrored to Redis. loader is nil when
// the mirror is disabled.
type SnapshotHandler struct {
	loader SnapshotLoader
	stopID string
	logger *slog.Logger
}

func NewSnapshotHandler(loader SnapshotLoader, stopID string, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		loader: loader,
		stopID: stopID,
		logger: logger.With("component", "snapshot_handler"),
	}
}

type SnapshotResponse struct {
	Snapshot   *domain.Snapshot `json:"snapshot"`
	Age        string           `json:"age"`
	ServerTime time.Time        `json:"serverTime"`
}

func (h *SnapshotHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	if h.loader == nil {
		respondError(w, http.StatusNotFound, "snapshot mirror disabled")
		return
	}

	snapshot, ok, err := h.loader.Load(r.Context(), h.stopID)
	if err != nil {
		ServerStats.IncCacheMisses()
		h.logger.Error("failed to load snapshot", "error", err)
		respondError(w, http.StatusServiceUnavailable, "snapshot unavailable")
		return
	}
	if !ok {
		ServerStats.IncCacheMisses()
		respondError(w, http.StatusNotFound, "no snapshot mirrored yet")
		return
	}
	ServerStats.IncCacheHits()

	now := time.Now()
	respondJSON(w, http.StatusOK, SnapshotResponse{
		Snapshot:   snapshot,
		Age:        now.Sub(snapshot.FetchedAt).Round(time.Second).String(),
		ServerTime: now,
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
