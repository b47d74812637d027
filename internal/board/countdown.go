package board

import (
	"fmt"
	"time"
)

// Countdown renders target relative to now, e.g. "In 3m 12s (14:05)" or
// "1m 4s ago (13:58)". The clock time uses target's own location.
func Countdown(target, now time.Time) string {
	diffMs := target.Sub(now).Milliseconds()
	past := diffMs < 0

	abs := diffMs
	if past {
		abs = -abs
	}
	minutes := abs / 60000
	seconds := (abs % 60000) / 1000
	clock := fmt.Sprintf("(%02d:%02d)", target.Hour(), target.Minute())

	if past {
		return fmt.Sprintf("%dm %ds ago %s", minutes, seconds, clock)
	}
	return fmt.Sprintf("In %dm %ds %s", minutes, seconds, clock)
}

// Upcoming reports whether target is at or after now, at the same millisecond
// resolution Countdown uses.
func Upcoming(target, now time.Time) bool {
	return target.Sub(now).Milliseconds() >= 0
}
