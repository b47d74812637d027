package domain

import "time"

// Line identifies the service a departure belongs to
type Line struct {
	Name string `json:"name"`
	Mode string `json:"mode"`
}

// Departure is one scheduled or estimated tram departure at the observed stop
type Departure struct {
	When      time.Time `json:"when"`
	Line      Line      `json:"line"`
	Direction string    `json:"direction"`
}

// Direction is the rider-facing group a departure is shown under
type Direction string

const (
	DirectionPrimary   Direction = "primary"
	DirectionSecondary Direction = "secondary"
)

// ParseDirection maps a tab key to a Direction. Anything unknown selects the
// first tab.
func ParseDirection(s string) Direction {
	if Direction(s) == DirectionSecondary {
		return DirectionSecondary
	}
	return DirectionPrimary
}

func (d Direction) String() string {
	return string(d)
}

// Directions lists both tabs in display order
func Directions() []Direction {
	return []Direction{DirectionPrimary, DirectionSecondary}
}
