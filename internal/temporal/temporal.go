// Package temporal normalizes free-text clock times and time ranges into a
// canonical 24-hour representation.
//
// Malformed input (hour > 23, minute > 59, unparseable text) always fails the
// whole parse; values are never clamped or guessed. Callers surface a failed
// parse as insufficient input.
package temporal

import (
	"regexp"
	"strconv"
	"strings"
)

// TimeRange is the canonical form of a parsed time range.
type TimeRange struct {
	Start         string  `json:"start"` // "HH:MM"
	End           string  `json:"end"`   // "HH:MM"
	DurationHours float64 `json:"duration_hours"`
}

// singlePattern matches one clock time: 24-hour "HH:MM", 12-hour "H:MM am/pm",
// or hour-only "H am/pm". Case-insensitive, optional space before the suffix.
var singlePattern = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*$`)

// rangeSeparator splits a range on a hyphen, en-dash, or the word "to".
var rangeSeparator = regexp.MustCompile(`(?i)\s*(?:-|–|\bto\b)\s*`)

// ParseSingle parses one clock time into canonical "HH:MM" form.
// Returns false if the text is not a single valid time.
func ParseSingle(text string) (string, bool) {
	m := singlePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil {
			return "", false
		}
	}
	suffix := strings.ToLower(m[3])

	// Bare hour without am/pm suffix or minutes is ambiguous ("7" alone).
	if suffix == "" && m[2] == "" {
		return "", false
	}

	if suffix != "" {
		// 12-hour clock: hour must be 1-12.
		if hour < 1 || hour > 12 {
			return "", false
		}
		if suffix == "pm" && hour != 12 {
			hour += 12
		}
		if suffix == "am" && hour == 12 {
			hour = 0
		}
	}

	if hour > 23 || minute > 59 {
		return "", false
	}

	return formatHHMM(hour, minute), true
}

// ParseRange parses a time range joined by a hyphen, en-dash, or "to" into a
// start/end/duration triple. Both halves must parse; otherwise the whole
// range fails. Ranges ending at or before their start are treated as
// crossing midnight.
func ParseRange(text string) (TimeRange, bool) {
	parts := rangeSeparator.Split(strings.TrimSpace(text), -1)
	if len(parts) != 2 {
		return TimeRange{}, false
	}

	start, ok := ParseSingle(parts[0])
	if !ok {
		// Allow hour-only starts when the suffix lives on the end half,
		// e.g. "9-5pm" or "9 to 5pm".
		start, ok = borrowSuffix(parts[0], parts[1])
		if !ok {
			return TimeRange{}, false
		}
	}
	end, ok := ParseSingle(parts[1])
	if !ok {
		return TimeRange{}, false
	}

	startMin := toMinutes(start)
	endMin := toMinutes(end)
	if endMin <= startMin {
		endMin += 24 * 60
	}

	return TimeRange{
		Start:         start,
		End:           end,
		DurationHours: float64(endMin-startMin) / 60.0,
	}, true
}

// CanonicalStart extracts a single canonical "HH:MM" from text that may be
// either a single time or a range. For ranges the start time is returned.
func CanonicalStart(text string) (string, bool) {
	if t, ok := ParseSingle(text); ok {
		return t, true
	}
	if r, ok := ParseRange(text); ok {
		return r.Start, true
	}
	return "", false
}

// borrowSuffix retries a suffix-less start half using the am/pm suffix of the
// end half. "9-5pm" reads as 9am-5pm when the end is pm and the bare start
// hour is below the end hour's 12-hour value, matching how people write it.
func borrowSuffix(startText, endText string) (string, bool) {
	em := singlePattern.FindStringSubmatch(endText)
	if em == nil || em[3] == "" {
		return "", false
	}
	sm := singlePattern.FindStringSubmatch(startText)
	if sm == nil || sm[3] != "" {
		return "", false
	}

	hour, err := strconv.Atoi(sm[1])
	if err != nil || hour < 1 || hour > 12 {
		return "", false
	}
	minute := 0
	if sm[2] != "" {
		minute, err = strconv.Atoi(sm[2])
		if err != nil || minute > 59 {
			return "", false
		}
	}

	endHour, _ := strconv.Atoi(em[1])
	suffix := strings.ToLower(em[3])
	// "9-5pm" means 9am; "1-5pm" means 1pm. The start shares the end's
	// suffix only when it would otherwise land after the end.
	if suffix == "pm" && hour > endHour {
		suffix = "am"
	}

	if suffix == "pm" && hour != 12 {
		hour += 12
	}
	if suffix == "am" && hour == 12 {
		hour = 0
	}
	return formatHHMM(hour, minute), true
}

func toMinutes(hhmm string) int {
	hour, _ := strconv.Atoi(hhmm[:2])
	minute, _ := strconv.Atoi(hhmm[3:])
	return hour*60 + minute
}

func formatHHMM(hour, minute int) string {
	return pad2(hour) + ":" + pad2(minute)
}

func pad2(v int) string {
	if v < 10 {
		return "0" + strconv.Itoa(v)
	}
	return strconv.Itoa(v)
}
