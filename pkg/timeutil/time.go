// Package timeutil provides day-boundary and range helpers; the internal
// feed uses the day-boundary pair to bound its trade-date query. Every function takes its
// reference instant as a parameter rather than calling time.Now()
// internally, so callers stay on the injected clock and pipeline runs remain
// deterministic.
package timeutil

import (
	"fmt"
	"time"
)

// DayStartFrom returns 00:00:00 of t's calendar day, in t's own location.
// Used with DayEndFrom to bound the internal feed's trade-date query.
func DayStartFrom(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DayEndFrom returns 23:59:59.999999999 of t's calendar day, in t's own
// location.
func DayEndFrom(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, t.Location())
}

// TimeRange is a closed interval [Start, End].
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the range, inclusive.
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Start) && !t.After(tr.End)
}

// Duration returns End - Start.
func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// ToLocation converts t to loc, defaulting to UTC when loc is nil.
func ToLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t.UTC()
	}
	return t.In(loc)
}

// ParseInLocation parses value using layout in loc, defaulting to UTC when
// loc is nil.
func ParseInLocation(layout, value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(layout, value, loc)
}

// FormatDuration renders a duration the way operator-facing run summaries do
// ("2h15m", "45s") instead of Go's default fractional-seconds form. Exact
// hours still show the "0m0s" tail (time.Duration(3*time.Hour).String()
// convention) since a bare "3h" reads as an approximation in a run summary.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case hours > 0 && minutes == 0 && seconds == 0:
		return (time.Duration(hours) * time.Hour).String()
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	case minutes > 0 && seconds > 0:
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
