package entities

import (
	"fmt"
	"time"
)

// Interval is a half-open time interval [Start, End).
// Two intervals that merely touch at a boundary do not overlap.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewInterval creates an interval, normalizing both instants to UTC.
func NewInterval(start, end time.Time) Interval {
	return Interval{Start: start.UTC(), End: end.UTC()}
}

// Validate checks that the interval is well-formed
func (i Interval) Validate() error {
	if i.Start.IsZero() || i.End.IsZero() {
		return fmt.Errorf("interval start and end are required")
	}
	if !i.End.After(i.Start) {
		return fmt.Errorf("interval end must be after start")
	}
	return nil
}

// Duration returns the length of the interval
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether two half-open intervals intersect.
// [a, b) and [b, c) do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Contains reports whether the instant t falls inside [Start, End)
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Covers reports whether other lies entirely within i
func (i Interval) Covers(other Interval) bool {
	return !other.Start.Before(i.Start) && !other.End.After(i.End)
}

// Intersect returns the overlapping portion of two intervals and whether
// a non-empty intersection exists.
func (i Interval) Intersect(other Interval) (Interval, bool) {
	start := i.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := i.End
	if other.End.Before(end) {
		end = other.End
	}
	if !end.After(start) {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// Subtract removes other from i and returns the remaining sub-intervals,
// ordered by start time. The result has zero, one or two elements.
func (i Interval) Subtract(other Interval) []Interval {
	if !i.Overlaps(other) {
		return []Interval{i}
	}

	var remaining []Interval
	if other.Start.After(i.Start) {
		remaining = append(remaining, Interval{Start: i.Start, End: other.Start})
	}
	if other.End.Before(i.End) {
		remaining = append(remaining, Interval{Start: other.End, End: i.End})
	}
	return remaining
}

// Equal reports whether both boundaries coincide
func (i Interval) Equal(other Interval) bool {
	return i.Start.Equal(other.Start) && i.End.Equal(other.End)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
}
