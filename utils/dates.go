// utils/dates.go
package utils

import "time"

func BeginningOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// NextDay returns the [start, end) window covering the calendar day after t.
func NextDay(t time.Time) (time.Time, time.Time) {
	start := BeginningOfDay(t).AddDate(0, 0, 1)
	return start, start.AddDate(0, 0, 1)
}
