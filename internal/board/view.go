package board

import (
	"fmt"
	"time"

	"tramboard/internal/domain"
)

const loadingMessage = "Loading..."

// Options carries the cosmetic parameters of the board.
type Options struct {
	Title            string
	PrimaryLabel     string
	SecondaryLabel   string
	LookaheadMinutes int
}

type Tab struct {
	Key    domain.Direction `json:"key"`
	Label  string           `json:"label"`
	Active bool             `json:"active"`
}

type Row struct {
	Line        string    `json:"line"`
	Mode        string    `json:"mode"`
	Destination string    `json:"destination"`
	Countdown   string    `json:"countdown"`
	When        time.Time `json:"when"`
	Upcoming    bool      `json:"upcoming"`
}

// View is the render-ready board for one tab.
type View struct {
	Title      string           `json:"title"`
	Status     domain.Status    `json:"status"`
	Message    string           `json:"message,omitempty"`
	Tabs       []Tab            `json:"tabs"`
	Active     domain.Direction `json:"active"`
	Rows       []Row            `json:"rows"`
	Now        time.Time        `json:"now"`
	UpdatedAt  time.Time        `json:"updatedAt"`
	Refreshing bool             `json:"refreshing"`
}

// Builder turns board state into views. It never fetches; switching tabs
// only reclassifies the snapshot it is given.
type Builder struct {
	classifier *Classifier
	opts       Options
}

func NewBuilder(classifier *Classifier, opts Options) *Builder {
	return &Builder{classifier: classifier, opts: opts}
}

func (b *Builder) EmptyMessage() string {
	return fmt.Sprintf("No departures found in the next %d minutes", b.opts.LookaheadMinutes)
}

func (b *Builder) Build(state domain.BoardState, active domain.Direction) View {
	v := View{
		Title:      b.opts.Title,
		Status:     state.Status,
		Tabs:       b.tabs(active),
		Active:     active,
		Rows:       []Row{},
		Now:        state.Now,
		UpdatedAt:  state.UpdatedAt,
		Refreshing: state.Refreshing,
	}

	switch state.Status {
	case domain.StatusLoading:
		v.Message = loadingMessage
		return v
	case domain.StatusError:
		v.Message = state.Error
		if v.Message == "" {
			v.Message = domain.FetchFailedMessage
		}
		return v
	}

	for _, d := range b.classifier.Filter(state.Visible(), active) {
		v.Rows = append(v.Rows, Row{
			Line:        d.Line.Name,
			Mode:        d.Line.Mode,
			Destination: d.Direction,
			Countdown:   Countdown(d.When, state.Now),
			When:        d.When,
			Upcoming:    Upcoming(d.When, state.Now),
		})
	}
	if len(v.Rows) == 0 {
		v.Message = b.EmptyMessage()
	}
	return v
}

func (b *Builder) tabs(active domain.Direction) []Tab {
	return []Tab{
		{Key: domain.DirectionPrimary, Label: b.opts.PrimaryLabel, Active: active == domain.DirectionPrimary},
		{Key: domain.DirectionSecondary, Label: b.opts.SecondaryLabel, Active: active == domain.DirectionSecondary},
	}
}
