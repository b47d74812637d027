package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tramboard/internal/domain"
)

func TestStore(t *testing.T) {
	t0 := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	deps := []domain.Departure{
		{When: t0.Add(time.Minute), Line: domain.Line{Name: "21", Mode: "train"}, Direction: "Frankfurter Tor"},
		{When: t0.Add(2 * time.Minute), Line: domain.Line{Name: "M10", Mode: "tram"}, Direction: "Wedding"},
	}

	t.Run("should start loading", func(t *testing.T) {
		s := New(t0)
		state := s.Snapshot()
		assert.Equal(t, domain.StatusLoading, state.Status)
		assert.Equal(t, t0, state.Now)
		assert.Empty(t, state.Visible())
	})

	t.Run("should fail on the first load without a snapshot", func(t *testing.T) {
		s := New(t0)
		state := s.SetFailed(domain.FetchFailedMessage)
		assert.Equal(t, domain.StatusError, state.Status)
		assert.Empty(t, state.Departures)
		assert.Equal(t, domain.FetchFailedMessage, state.Error)
	})

	t.Run("should retain but hide the snapshot after a failure", func(t *testing.T) {
		s := New(t0)
		s.SetSnapshot(deps, t0)
		state := s.SetFailed(domain.FetchFailedMessage)

		assert.Len(t, state.Departures, 2)
		assert.Empty(t, state.Visible())

		state = s.SetSnapshot(deps[:1], t0.Add(time.Minute))
		assert.Equal(t, domain.StatusReady, state.Status)
		assert.Empty(t, state.Error)
		assert.Len(t, state.Visible(), 1)
		assert.Equal(t, t0.Add(time.Minute), state.UpdatedAt)

		ok, failed := s.FetchCounts()
		assert.Equal(t, int64(2), ok)
		assert.Equal(t, int64(1), failed)
	})

	t.Run("should tick without changing status", func(t *testing.T) {
		s := New(t0)
		state := s.Tick(t0.Add(time.Second))
		assert.Equal(t, domain.StatusLoading, state.Status)
		assert.Equal(t, t0.Add(time.Second), state.Now)

		s.SetFailed(domain.FetchFailedMessage)
		state = s.Tick(t0.Add(2 * time.Second))
		assert.Equal(t, domain.StatusError, state.Status)
	})

	t.Run("should not share memory with callers", func(t *testing.T) {
		s := New(t0)
		in := append([]domain.Departure(nil), deps...)
		s.SetSnapshot(in, t0)
		in[0].Direction = "changed"

		out := s.Snapshot()
		require.Len(t, out.Departures, 2)
		assert.Equal(t, "Frankfurter Tor", out.Departures[0].Direction)

		out.Departures[1].Direction = "changed"
		assert.Equal(t, "Wedding", s.Snapshot().Departures[1].Direction)
	})

	t.Run("should count by mode", func(t *testing.T) {
		s := New(t0)
		s.SetSnapshot(deps, t0)
		assert.Equal(t, 2, s.Count())
		assert.Equal(t, map[string]int{"train": 1, "tram": 1}, s.CountByMode())
	})

	t.Run("should expose the refreshing flag", func(t *testing.T) {
		s := New(t0)
		assert.True(t, s.SetRefreshing(true).Refreshing)
		assert.False(t, s.SetRefreshing(false).Refreshing)
	})
}
