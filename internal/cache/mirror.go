package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"tramboard/internal/domain"
)

// Mirror keeps a copy of the latest successful snapshot in Redis so other
// displays can read it without polling the upstream themselves. It is never
// used to seed the board.
type Mirror struct {
	cache  *RedisCache
	ttl    time.Duration
	logger *slog.Logger

	saved  atomic.Int64
	failed atomic.Int64
}

func NewMirror(cache *RedisCache, ttl time.Duration, logger *slog.Logger) *Mirror {
	return &Mirror{
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("component", "snapshot_mirror"),
	}
}

func (m *Mirror) Save(ctx context.Context, snapshot domain.Snapshot) error {
	start := time.Now()
	if err := m.cache.SetJSONCompressed(ctx, KeySnapshot(snapshot.StopID), snapshot, m.ttl); err != nil {
		m.failed.Add(1)
		return err
	}
	m.saved.Add(1)
	m.logger.Debug("mirrored snapshot",
		"stop_id", snapshot.StopID,
		"departures", len(snapshot.Departures),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Load returns the mirrored snapshot for stopID, or false if there is none.
func (m *Mirror) Load(ctx context.Context, stopID string) (*domain.Snapshot, bool, error) {
	var snapshot domain.Snapshot
	ok, err := m.cache.GetJSONCompressed(ctx, KeySnapshot(stopID), &snapshot)
	if err != nil || !ok {
		return nil, false, err
	}
	return &snapshot, true, nil
}

func (m *Mirror) Counts() (saved, failed int64) {
	return m.saved.Load(), m.failed.Load()
}
