package schedule

import (
	"fmt"
	"time"
)

// BusyInterval is a half-open time range [Start, End) during which
// scheduling is disallowed.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// Slot is a proposed meeting slot.
type Slot struct {
	Start time.Time
	End   time.Time
}

// ParseError reports a timestamp that could not be parsed.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %s timestamp %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseBusy converts RFC 3339 start/end pairs into busy intervals.
// A malformed timestamp fails the whole call with a *ParseError; intervals
// are never silently skipped, because a dropped busy interval would let a
// conflicting meeting through.
func ParseBusy(raw [][2]string) ([]BusyInterval, error) {
	busy := make([]BusyInterval, 0, len(raw))
	for _, pair := range raw {
		start, err := time.Parse(time.RFC3339, pair[0])
		if err != nil {
			return nil, &ParseError{Field: "start", Value: pair[0], Err: err}
		}
		end, err := time.Parse(time.RFC3339, pair[1])
		if err != nil {
			return nil, &ParseError{Field: "end", Value: pair[1], Err: err}
		}
		busy = append(busy, BusyInterval{Start: start, End: end})
	}
	return busy, nil
}

// Conflicts reports whether the candidate interval [start, end) overlaps
// any of the busy intervals. All timestamps are normalized to UTC before
// comparison so that intervals expressed in different zones compare by
// instant, not by wall clock. Boundary touch is not a conflict under
// half-open semantics.
func Conflicts(start, end time.Time, busy []BusyInterval) bool {
	s, e := start.UTC(), end.UTC()
	for _, b := range busy {
		bs, be := b.Start.UTC(), b.End.UTC()
		// Disjoint iff e <= bs or s >= be.
		if e.After(bs) && s.Before(be) {
			return true
		}
	}
	return false
}
