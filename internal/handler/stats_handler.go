package handler

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"tramboard/internal/domain"
	"tramboard/internal/middleware"
	"tramboard/internal/store"
)

// Stats tracks server-wide counters.
type Stats struct {
	startTime     time.Time
	requestCount  atomic.Int64
	wsConnections atomic.Int64
	wsMessagesIn  atomic.Int64
	wsMessagesOut atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
}

var ServerStats = &Stats{
	startTime: time.Now(),
}

func (s *Stats) IncRequests()      { s.requestCount.Add(1) }
func (s *Stats) IncWSConnections() { s.wsConnections.Add(1) }
func (s *Stats) DecWSConnections() { s.wsConnections.Add(-1) }
func (s *Stats) IncWSMessagesIn()  { s.wsMessagesIn.Add(1) }
func (s *Stats) IncWSMessagesOut() { s.wsMessagesOut.Add(1) }
func (s *Stats) IncCacheHits()     { s.cacheHits.Add(1) }
func (s *Stats) IncCacheMisses()   { s.cacheMisses.Add(1) }

type FetchCounter interface {
	Issued() int64
	Discarded() int64
}

type ClientCounter interface {
	ClientCount() int
}

type MirrorCounter interface {
	Counts() (saved, failed int64)
}

type StatsHandler struct {
	store   *store.Store
	fetches FetchCounter
	clients ClientCounter
	mirror  MirrorCounter
	limiter *middleware.RateLimiter
	version string
}

// NewStatsHandler builds the stats endpoint. mirror may be nil.
func NewStatsHandler(s *store.Store, fetches FetchCounter, clients ClientCounter, mirror MirrorCounter, limiter *middleware.RateLimiter, version string) *StatsHandler {
	return &StatsHandler{
		store:   s,
		fetches: fetches,
		clients: clients,
		mirror:  mirror,
		limiter: limiter,
		version: version,
	}
}

type StatsResponse struct {
	Server    ServerStatsResponse    `json:"server"`
	Board     BoardStatsResponse     `json:"board"`
	Fetches   FetchStatsResponse     `json:"fetches"`
	WebSocket WebSocketStatsResponse `json:"websocket"`
	Mirror    *MirrorStatsResponse   `json:"mirror,omitempty"`
	RateLimit *middleware.Stats      `json:"rate_limit,omitempty"`
	Go        GoStatsResponse        `json:"go"`
}

type ServerStatsResponse struct {
	Uptime        string    `json:"uptime"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
	RequestCount  int64     `json:"request_count"`
	Version       string    `json:"version"`
}

type BoardStatsResponse struct {
	Status     domain.Status  `json:"status"`
	Departures int            `json:"departures"`
	ByMode     map[string]int `json:"by_mode"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Refreshing bool           `json:"refreshing"`
}

type FetchStatsResponse struct {
	Issued    int64 `json:"issued"`
	Applied   int64 `json:"applied"`
	Failed    int64 `json:"failed"`
	Discarded int64 `json:"discarded"`
}

type WebSocketStatsResponse struct {
	Clients     int   `json:"clients"`
	Connections int64 `json:"connections"`
	MessagesIn  int64 `json:"messages_in"`
	MessagesOut int64 `json:"messages_out"`
}

type MirrorStatsResponse struct {
	Saved      int64   `json:"saved"`
	Failed     int64   `json:"failed"`
	ReadHits   int64   `json:"read_hits"`
	ReadMisses int64   `json:"read_misses"`
	HitRatio   float64 `json:"hit_ratio"`
}

type GoStatsResponse struct {
	Goroutines  int     `json:"goroutines"`
	HeapAlloc   uint64  `json:"heap_alloc_bytes"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	NumGC       uint32  `json:"num_gc"`
	GoVersion   string  `json:"go_version"`
}

func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	uptime := time.Since(ServerStats.startTime)
	state := h.store.Snapshot()
	ok, failed := h.store.FetchCounts()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	response := StatsResponse{
		Server: ServerStatsResponse{
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			StartTime:     ServerStats.startTime,
			RequestCount:  ServerStats.requestCount.Load(),
			Version:       h.version,
		},
		Board: BoardStatsResponse{
			Status:     state.Status,
			Departures: len(state.Departures),
			ByMode:     h.store.CountByMode(),
			UpdatedAt:  state.UpdatedAt,
			Refreshing: state.Refreshing,
		},
		Fetches: FetchStatsResponse{
			Issued:    h.fetches.Issued(),
			Applied:   ok,
			Failed:    failed,
			Discarded: h.fetches.Discarded(),
		},
		WebSocket: WebSocketStatsResponse{
			Clients:     h.clients.ClientCount(),
			Connections: ServerStats.wsConnections.Load(),
			MessagesIn:  ServerStats.wsMessagesIn.Load(),
			MessagesOut: ServerStats.wsMessagesOut.Load(),
		},
		Go: GoStatsResponse{
			Goroutines:  runtime.NumGoroutine(),
			HeapAlloc:   mem.HeapAlloc,
			HeapAllocMB: float64(mem.HeapAlloc) / 1024 / 1024,
			NumGC:       mem.NumGC,
			GoVersion:   runtime.Version(),
		},
	}

	if h.mirror != nil {
		saved, saveFailed := h.mirror.Counts()
		hits := ServerStats.cacheHits.Load()
		misses := ServerStats.cacheMisses.Load()
		var ratio float64
		if total := hits + misses; total > 0 {
			ratio = float64(hits) / float64(total)
		}
		response.Mirror = &MirrorStatsResponse{
			Saved:      saved,
			Failed:     saveFailed,
			ReadHits:   hits,
			ReadMisses: misses,
			HitRatio:   ratio,
		}
	}

	if h.limiter != nil {
		rl := h.limiter.Stats()
		response.RateLimit = &rl
	}

	w.Header().Set("Cache-Control", "no-cache")
	respondJSON(w, http.StatusOK, response)
}
