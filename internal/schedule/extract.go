package schedule

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	rfc3339Re = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}(?::\d{2})?(?:Z|[+-]\d{2}:\d{2})?`)

	monthDateRe = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:tember|t)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)

	numericDateRe = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)

	clock12Re = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*([ap])\.?m\.?\b`)

	clock24Re = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ExtractMeetingTime scans free-form email text for a concrete meeting
// start time. It is a best-effort natural-language bridge, not a strict
// format parser: decoding artifacts and surrounding prose are tolerated,
// and any ambiguity (no date, or a date without a clock time) yields
// ok=false rather than a guess.
//
// A timestamp carrying its own offset is converted to loc; a naive
// timestamp is interpreted in loc.
func ExtractMeetingTime(body string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}

	// Full RFC 3339-style timestamps win outright.
	if m := rfc3339Re.FindString(body); m != "" {
		if t, ok := parseStamp(m, loc); ok {
			return t, true
		}
	}

	year, month, day, ok := findDate(body)
	if !ok {
		return time.Time{}, false
	}
	hour, minute, ok := findClock(body)
	if !ok {
		return time.Time{}, false
	}

	t := time.Date(year, month, day, hour, minute, 0, 0, loc)
	// time.Date normalizes out-of-range days (Feb 30 becomes Mar 2);
	// treat that as an unparseable date rather than a shifted one.
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

func parseStamp(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), true
		}
	}
	// No offset: localize instead of converting.
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func findDate(body string) (int, time.Month, int, bool) {
	if m := monthDateRe.FindStringSubmatch(body); m != nil {
		month, ok := months[strings.ToLower(m[1][:3])]
		if !ok {
			return 0, 0, 0, false
		}
		day, err1 := strconv.Atoi(m[2])
		year, err2 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil || day < 1 || day > 31 {
			return 0, 0, 0, false
		}
		return year, month, day, true
	}
	if m := numericDateRe.FindStringSubmatch(body); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return 0, 0, 0, false
		}
		return year, time.Month(month), day, true
	}
	return 0, 0, 0, false
}

func findClock(body string) (int, int, bool) {
	if m := clock12Re.FindStringSubmatch(body); m != nil {
		hour, err := strconv.Atoi(m[1])
		if err != nil || hour < 1 || hour > 12 {
			return 0, 0, false
		}
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if strings.EqualFold(m[3], "p") {
			if hour != 12 {
				hour += 12
			}
		} else if hour == 12 {
			hour = 0
		}
		return hour, minute, true
	}
	if m := clock24Re.FindStringSubmatch(body); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		return hour, minute, true
	}
	return 0, 0, false
}
