package utils

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		value   string
		want    int
		wantErr bool
	}{
		{"09:30", 570, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{"  10:15 ", 615, false},
		{"14:30:45", 870, false},
		{"2026-03-01 14:30:00", 870, false},
		{"2026-03-01T14:30:00Z", 870, false},
		{"2026-03-01T14:30", 870, false},
		{"", 0, true},
		{"not a time", 0, true},
		{"25:00", 0, true},
	}

	for _, tc := range cases {
		got, err := ParseClock(tc.value)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q) = %d, want error", tc.value, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): %v", tc.value, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tc.value, got, tc.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	cases := map[int]string{
		0:    "00:00",
		570:  "09:30",
		1439: "23:59",
	}
	for minutes, want := range cases {
		if got := FormatClock(minutes); got != want {
			t.Errorf("FormatClock(%d) = %q, want %q", minutes, got, want)
		}
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2026-03-01")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if got.Year() != 2026 || got.Month() != time.March || got.Day() != 1 {
		t.Errorf("ParseDate = %v, want 2026-03-01", got)
	}

	for _, bad := range []string{"01.03.2026", "March 1, 2026", ""} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("ParseDate(%q) should fail", bad)
		}
	}
}

func TestIntervalsOverlap(t *testing.T) {
	cases := []struct {
		name                         string
		aStart, aEnd, bStart, bEnd   int
		want                         bool
	}{
		{"identical", 600, 660, 600, 660, true},
		{"partial overlap", 600, 660, 630, 690, true},
		{"contained", 600, 720, 630, 660, true},
		{"adjacent after", 600, 660, 660, 720, false},
		{"adjacent before", 660, 720, 600, 660, false},
		{"disjoint", 600, 660, 720, 780, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IntervalsOverlap(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
				t.Errorf("IntervalsOverlap(%d,%d,%d,%d) = %v, want %v",
					tc.aStart, tc.aEnd, tc.bStart, tc.bEnd, got, tc.want)
			}
			// Overlap is symmetric.
			if got := IntervalsOverlap(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd); got != tc.want {
				t.Errorf("reversed IntervalsOverlap = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCombineDateAndClock(t *testing.T) {
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got := CombineDateAndClock(date, 9*60+30, time.UTC)
	want := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("CombineDateAndClock = %v, want %v", got, want)
	}
}

func TestStartOfDay(t *testing.T) {
	ts := time.Date(2026, 3, 1, 17, 45, 12, 999, time.UTC)
	got := StartOfDay(ts)
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("StartOfDay = %v, want %v", got, want)
	}
}
