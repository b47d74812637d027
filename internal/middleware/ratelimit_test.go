package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func newLimiter(rate int, whitelist ...string) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(rate, time.Minute, whitelist, discard)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_Allow(t *testing.T) {
	t.Run("should allow up to the rate per window", func(t *testing.T) {
		rl, _ := newLimiter(2)
		assert.True(t, rl.Allow("10.0.0.1"))
		assert.True(t, rl.Allow("10.0.0.1"))
		assert.False(t, rl.Allow("10.0.0.1"))
		assert.True(t, rl.Allow("10.0.0.2"))
	})

	t.Run("should count every rejection", func(t *testing.T) {
		rl, _ := newLimiter(1, "192.0.2.1")
		assert.True(t, rl.Permit("10.0.0.1"))
		assert.False(t, rl.Permit("10.0.0.1"))
		assert.False(t, rl.Allow("10.0.0.1"))
		assert.True(t, rl.Permit("192.0.2.1"))
		assert.True(t, rl.Permit("192.0.2.1"))
		assert.Equal(t, int64(2), rl.Stats().Blocked)
	})

	t.Run("should reset after the window", func(t *testing.T) {
		rl, clock := newLimiter(1)
		assert.True(t, rl.Allow("10.0.0.1"))
		assert.False(t, rl.Allow("10.0.0.1"))

		clock.t = clock.t.Add(time.Minute)
		assert.True(t, rl.Allow("10.0.0.1"))
	})

	t.Run("should evict idle clients", func(t *testing.T) {
		rl, clock := newLimiter(1)
		rl.Allow("10.0.0.1")
		clock.t = clock.t.Add(3 * time.Minute)
		rl.Allow("10.0.0.2")

		assert.Equal(t, 1, rl.evict())
		assert.Equal(t, 1, rl.Stats().TrackedIPs)
	})
}

func TestRateLimiter_Middleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	t.Run("should reject requests over the limit", func(t *testing.T) {
		rl, _ := newLimiter(1)
		h := rl.Middleware(ok)

		first := httptest.NewRecorder()
		h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/v1/refresh", nil))
		assert.Equal(t, http.StatusAccepted, first.Code)

		second := httptest.NewRecorder()
		h.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/v1/refresh", nil))
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.Equal(t, "60", second.Header().Get("Retry-After"))
		assert.Equal(t, int64(1), rl.Stats().Blocked)
	})

	t.Run("should let whitelisted addresses through", func(t *testing.T) {
		rl, _ := newLimiter(1, "192.0.2.1")
		h := rl.Middleware(ok)

		for n := 0; n < 3; n++ {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/refresh", nil))
			assert.Equal(t, http.StatusAccepted, rec.Code)
		}
	})
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"remote addr", nil, "203.0.113.7:5555", "203.0.113.7"},
		{"forwarded for", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"}, "10.0.0.1:80", "198.51.100.1"},
		{"forwarded for with port", map[string]string{"X-Forwarded-For": "198.51.100.1:1234"}, "10.0.0.1:80", "198.51.100.1"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.1:80", "198.51.100.2"},
		{"remote addr without port", nil, "pipe", "pipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

func TestRateLimiter_Run(t *testing.T) {
	defer leaktest.Check(t)()

	rl, _ := newLimiter(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		rl.Run(ctx)
	}()
	cancel()
	<-done
}
