package schedule

import "time"

// Default work-hour window used when a caller passes zero values.
const (
	DefaultWorkHourStart = 9
	DefaultWorkHourEnd   = 17
)

// SuggestSlot searches for the earliest hour-aligned slot on the same
// calendar day as candidate that does not conflict with any busy
// interval. Candidate start hours run from workHourStart up to but not
// including workHourEnd, at hour granularity, in the candidate's own
// location.
//
// The search never crosses into the following day; when the whole window
// is busy it returns ok=false and the caller decides what to tell the
// user. Earliest hour wins, no randomization.
func SuggestSlot(candidate time.Time, duration time.Duration, busy []BusyInterval, workHourStart, workHourEnd int) (Slot, bool) {
	if workHourStart == 0 && workHourEnd == 0 {
		workHourStart = DefaultWorkHourStart
		workHourEnd = DefaultWorkHourEnd
	}

	year, month, day := candidate.Date()
	loc := candidate.Location()

	for hour := workHourStart; hour < workHourEnd; hour++ {
		start := time.Date(year, month, day, hour, 0, 0, 0, loc)
		end := start.Add(duration)
		if !Conflicts(start, end, busy) {
			return Slot{Start: start, End: end}, true
		}
	}
	return Slot{}, false
}
