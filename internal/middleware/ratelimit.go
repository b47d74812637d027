package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// RateLimiter allows a fixed number of requests per client IP per window.
// It guards manual refreshes, which each cost one upstream call.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*window
	rate      int
	period    time.Duration
	whitelist map[string]struct{}
	now       func() time.Time
	logger    *slog.Logger

	blocked atomic.Int64
}

type window struct {
	remaining int
	start     time.Time
}

func NewRateLimiter(rate int, period time.Duration, whitelist []string, logger *slog.Logger) *RateLimiter {
	wl := make(map[string]struct{}, len(whitelist))
	for _, ip := range whitelist {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			wl[ip] = struct{}{}
		}
	}

	return &RateLimiter{
		clients:   make(map[string]*window),
		rate:      rate,
		period:    period,
		whitelist: wl,
		now:       time.Now,
		logger:    logger.With("component", "rate_limiter"),
	}
}

// Run evicts idle clients until ctx is cancelled.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.period * 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evict()
		}
	}
}

func (rl *RateLimiter) evict() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	evicted := 0
	for ip, w := range rl.clients {
		if now.Sub(w.start) > rl.period*2 {
			delete(rl.clients, ip)
			evicted++
		}
	}
	return evicted
}

func (rl *RateLimiter) IsWhitelisted(ip string) bool {
	_, ok := rl.whitelist[ip]
	return ok
}

// Allow consumes one request for ip and reports whether it may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.clients[ip]
	if !ok || now.Sub(w.start) >= rl.period {
		rl.clients[ip] = &window{remaining: rl.rate - 1, start: now}
		return true
	}

	if w.remaining > 0 {
		w.remaining--
		return true
	}
	rl.blocked.Add(1)
	return false
}

// Permit is Allow with whitelisted addresses always let through.
func (rl *RateLimiter) Permit(ip string) bool {
	return rl.IsWhitelisted(ip) || rl.Allow(ip)
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if rl.Permit(ip) {
			next.ServeHTTP(w, r)
			return
		}

		rl.logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
		w.Header().Set("Retry-After", strconv.Itoa(int(rl.period.Seconds())))
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
	})
}

// ClientIP returns the caller address, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if host, _, err := net.SplitHostPort(first); err == nil {
			return host
		}
		return first
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

type Stats struct {
	TrackedIPs    int   `json:"tracked_ips"`
	RatePerWindow int   `json:"rate_per_window"`
	WindowSeconds int   `json:"window_seconds"`
	Blocked       int64 `json:"blocked"`
}

func (rl *RateLimiter) Stats() Stats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return Stats{
		TrackedIPs:    len(rl.clients),
		RatePerWindow: rl.rate,
		WindowSeconds: int(rl.period.Seconds()),
		Blocked:       rl.blocked.Load(),
	}
}
