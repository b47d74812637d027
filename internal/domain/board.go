package domain

import "time"

// Status is the refresh state of the board
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// FetchFailedMessage is the only error text riders ever see.
const FetchFailedMessage = "Failed to fetch departure times. Please try again later."

// BoardState is everything the view needs to render the board.
//
// Departures always holds the most recent successful snapshot, including
// while Status is StatusError; use Visible to get what may be shown.
type BoardState struct {
	Status     Status      `json:"status"`
	Departures []Departure `json:"departures"`
	Error      string      `json:"error,omitempty"`
	Now        time.Time   `json:"now"`
	UpdatedAt  time.Time   `json:"updatedAt"`
	Refreshing bool        `json:"refreshing"`
}

// Visible returns the departures that may be displayed for the current status.
func (s BoardState) Visible() []Departure {
	if s.Status != StatusReady {
		return nil
	}
	return s.Departures
}

// Clone returns a copy that shares no slice memory with s.
func (s BoardState) Clone() BoardState {
	out := s
	if s.Departures != nil {
		out.Departures = make([]Departure, len(s.Departures))
		copy(out.Departures, s.Departures)
	}
	return out
}

// Snapshot is a successful fetch result as persisted by the mirror
type Snapshot struct {
	StopID     string      `json:"stopId"`
	Departures []Departure `json:"departures"`
	FetchedAt  time.Time   `json:"fetchedAt"`
}
