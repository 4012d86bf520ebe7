package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// ParseDate parses a calendar date in "YYYY-MM-DD" form.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format %q: %w", value, err)
	}
	return t, nil
}

// ParseClock parses an "HH:MM" wall-clock value into minutes since
// midnight. Clients occasionally send "HH:MM:SS" or full datetimes, so a
// few fallback layouts are accepted before giving up.
func ParseClock(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("time value cannot be empty")
	}

	layout := ClockLayout
	if strings.Count(value, ":") >= 2 {
		layout = "15:04:05"
	}

	if t, err := time.Parse(layout, value); err == nil {
		return t.Hour()*60 + t.Minute(), nil
	} else {
		fallbackLayouts := []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02 15:04:05",
			"2006-01-02T15:04:05",
			"2006-01-02 15:04",
			"2006-01-02T15:04",
		}

		for _, layout := range fallbackLayouts {
			if parsed, altErr := time.Parse(layout, value); altErr == nil {
				return parsed.Hour()*60 + parsed.Minute(), nil
			}
		}

		timePattern := regexp.MustCompile(`\d{1,2}:\d{2}(?::\d{2})?`)
		if match := timePattern.FindString(value); match != "" && match != value {
			return ParseClock(match)
		}

		return 0, fmt.Errorf("invalid time format %q: %w", value, err)
	}
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// IntervalsOverlap reports whether the half-open intervals [aStart,aEnd)
// and [bStart,bEnd) intersect. Adjacent intervals do not overlap.
func IntervalsOverlap(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// CombineDateAndClock merges a calendar date with minutes since midnight
// into a single timestamp in the given location.
func CombineDateAndClock(date time.Time, minutes int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, loc)
}

// StartOfDay truncates a timestamp to midnight in its location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
