package store

import (
	"sync"
	"time"

	"tramboard/internal/domain"
)

// Store holds the board state. A single writer (the refresher) mutates it;
// readers get deep copies.
type Store struct {
	mu    sync.RWMutex
	state domain.BoardState

	fetchOK     int64
	fetchFailed int64
}

func New(now time.Time) *Store {
	return &Store{
		state: domain.BoardState{
			Status: domain.StatusLoading,
			Now:    now,
		},
	}
}

// SetSnapshot replaces the departures wholesale and moves to ready.
func (s *Store) SetSnapshot(departures []domain.Departure, fetchedAt time.Time) domain.BoardState {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]domain.Departure, len(departures))
	copy(snapshot, departures)

	s.state.Status = domain.StatusReady
	s.state.Departures = snapshot
	s.state.Error = ""
	s.state.UpdatedAt = fetchedAt
	s.fetchOK++

	return s.state.Clone()
}

// SetFailed moves to the error state. The previous snapshot stays in place.
func (s *Store) SetFailed(message string) domain.BoardState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Status = domain.StatusError
	s.state.Error = message
	s.fetchFailed++

	return s.state.Clone()
}

// Tick advances the clock reference without touching the status.
func (s *Store) Tick(now time.Time) domain.BoardState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Now = now
	return s.state.Clone()
}

func (s *Store) SetRefreshing(refreshing bool) domain.BoardState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Refreshing = refreshing
	return s.state.Clone()
}

func (s *Store) Snapshot() domain.BoardState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *Store) Status() domain.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Status
}

// Count returns the number of departures in the current snapshot.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.Departures)
}

// CountByMode groups the snapshot by line mode.
func (s *Store) CountByMode() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]int)
	for _, d := range s.state.Departures {
		result[d.Line.Mode]++
	}
	return result
}

// FetchCounts returns how many fetch results were applied, split by outcome.
func (s *Store) FetchCounts() (ok, failed int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchOK, s.fetchFailed
}
