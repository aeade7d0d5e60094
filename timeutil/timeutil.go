package timeutil

import (
	"fmt"
	"time"
)

const (
	// TimeLayout renders the clock text shown on the dashboard.
	TimeLayout = "3:04:05 PM"
	// DateLayout renders the date text shown on the dashboard.
	DateLayout = "Monday, January 2, 2006"
)

// Location loads the named zone, falling back to UTC when it is empty or
// unknown.
func Location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func FormatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(TimeLayout)
}

func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// StartOfDay returns midnight of t's day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	n := t.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
}

// StartOfWeek returns midnight of the most recent start day on or before t.
func StartOfWeek(t time.Time, start time.Weekday, loc *time.Location) time.Time {
	n := t.In(loc)
	diff := (int(n.Weekday()) - int(start) + 7) % 7
	day := n.AddDate(0, 0, -diff)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
}

// AddDays moves t by n calendar days in loc, keeping the wall-clock time of
// day across DST changes.
func AddDays(t time.Time, n int, loc *time.Location) time.Time {
	return t.In(loc).AddDate(0, 0, n)
}

func ParseRFC3339(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

func WithinLastAt(t time.Time, window time.Duration, now time.Time) bool {
	return t.After(now.Add(-window))
}
