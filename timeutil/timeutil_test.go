package timeutil

import (
	"testing"
	"time"
)

func mustLoc(t *testing.T, name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}
	return loc
}

func TestLocationFallsBackToUTC(t *testing.T) {
	if got := Location(""); got != time.UTC {
		t.Fatalf("expected UTC for empty name, got %s", got)
	}
	if got := Location("Not/AZone"); got != time.UTC {
		t.Fatalf("expected UTC for unknown zone, got %s", got)
	}
}

func TestFormat(t *testing.T) {
	loc := mustLoc(t, "America/Los_Angeles")
	at := time.Date(2026, 2, 4, 20, 5, 9, 0, time.UTC)

	if got, want := FormatTime(at, loc), "12:05:09 PM"; got != want {
		t.Fatalf("FormatTime = %q, want %q", got, want)
	}
	if got, want := FormatDate(at, loc), "Wednesday, February 4, 2026"; got != want {
		t.Fatalf("FormatDate = %q, want %q", got, want)
	}
}

func TestDayBoundaries(t *testing.T) {
	loc := mustLoc(t, "America/Los_Angeles")
	at := time.Date(2026, 2, 4, 12, 30, 0, 0, loc)

	start := StartOfDay(at, loc)
	if want := time.Date(2026, 2, 4, 0, 0, 0, 0, loc); !start.Equal(want) {
		t.Fatalf("StartOfDay = %s, want %s", start, want)
	}
	next := StartOfDay(AddDays(at, 1, loc), loc)
	if want := time.Date(2026, 2, 5, 0, 0, 0, 0, loc); !next.Equal(want) {
		t.Fatalf("next StartOfDay = %s, want %s", next, want)
	}
}

func TestStartOfWeek(t *testing.T) {
	loc := mustLoc(t, "America/Los_Angeles")

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "wednesday",
			now:  time.Date(2026, 2, 4, 12, 0, 0, 0, loc),
			want: time.Date(2026, 2, 2, 0, 0, 0, 0, loc),
		},
		{
			name: "monday",
			now:  time.Date(2026, 2, 2, 0, 0, 0, 0, loc),
			want: time.Date(2026, 2, 2, 0, 0, 0, 0, loc),
		},
		{
			name: "sunday",
			now:  time.Date(2026, 2, 8, 23, 0, 0, 0, loc),
			want: time.Date(2026, 2, 2, 0, 0, 0, 0, loc),
		},
		{
			name: "post_dst_start",
			now:  time.Date(2026, 3, 10, 12, 0, 0, 0, loc),
			want: time.Date(2026, 3, 9, 0, 0, 0, 0, loc),
		},
	}

	for _, tc := range cases {
		got := StartOfWeek(tc.now, time.Monday, loc)
		if !got.Equal(tc.want) {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestAddDaysKeepsWallTimeAcrossDST(t *testing.T) {
	loc := mustLoc(t, "America/Los_Angeles")
	before := time.Date(2026, 3, 7, 9, 0, 0, 0, loc)
	got := AddDays(before, 2, loc)
	if got.Hour() != 9 || got.Day() != 9 {
		t.Fatalf("expected 9am on the 9th, got %s", got)
	}
	if back := AddDays(got, -2, loc); !back.Equal(before) {
		t.Fatalf("expected %s, got %s", before, back)
	}
}

func TestParseRFC3339(t *testing.T) {
	cases := []string{
		"2026-02-01T01:23:45Z",
		"2026-02-01T01:23:45.123Z",
		"2026-02-01T01:23:45.123456789Z",
	}
	for _, value := range cases {
		if _, err := ParseRFC3339(value); err != nil {
			t.Fatalf("expected parse to succeed for %s: %v", value, err)
		}
	}
	if _, err := ParseRFC3339(""); err == nil {
		t.Fatalf("expected error for empty value")
	}
}

func TestWithinLastAt(t *testing.T) {
	now := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)
	inside := now.Add(-30 * time.Minute)
	outside := now.Add(-2 * time.Hour)

	if !WithinLastAt(inside, time.Hour, now) {
		t.Fatalf("expected inside to be within last hour")
	}
	if WithinLastAt(outside, time.Hour, now) {
		t.Fatalf("expected outside to be outside last hour")
	}
}
