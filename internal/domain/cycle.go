package domain

import (
	"fmt"
	"time"
)

// A cycle is an ISO-8601 week in UTC: Monday 00:00 up to the following Monday.

// CycleKey identifies the cycle containing t, e.g. "2026-W43".
func CycleKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// SameCycle reports whether a and b fall in the same cycle.
func SameCycle(a, b time.Time) bool {
	return CycleKey(a) == CycleKey(b)
}

// CycleStart returns the Monday 00:00 UTC that opens the cycle containing t.
func CycleStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}
