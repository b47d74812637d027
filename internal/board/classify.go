package board

import (
	"strings"

	"tramboard/internal/domain"
)

// DefaultMarkers are destination fragments served in the primary direction at
// Forckenbeckplatz on line 21.
var DefaultMarkers = []string{
	"Wedding",
	"Virchow-Klinikum",
	"S+U Lichtenberg/Gudrunstraße",
}

// Classifier splits departures into two directions by destination text.
type Classifier struct {
	markers []string
}

func NewClassifier(markers []string) *Classifier {
	m := make([]string, 0, len(markers))
	for _, s := range markers {
		if s != "" {
			m = append(m, s)
		}
	}
	return &Classifier{markers: m}
}

// Matches reports whether any marker occurs in destination. The match is a
// plain case-sensitive substring test.
func (c *Classifier) Matches(destination string) bool {
	for _, m := range c.markers {
		if strings.Contains(destination, m) {
			return true
		}
	}
	return false
}

func (c *Classifier) Classify(destination string) domain.Direction {
	if c.Matches(destination) {
		return domain.DirectionPrimary
	}
	return domain.DirectionSecondary
}

// Filter keeps the departures heading in dir, preserving order.
func (c *Classifier) Filter(departures []domain.Departure, dir domain.Direction) []domain.Departure {
	result := make([]domain.Departure, 0, len(departures))
	for _, d := range departures {
		if c.Classify(d.Direction) == dir {
			result = append(result, d)
		}
	}
	return result
}

func (c *Classifier) Markers() []string {
	out := make([]string, len(c.markers))
	copy(out, c.markers)
	return out
}
