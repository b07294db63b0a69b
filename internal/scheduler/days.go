package scheduler

import "time"

const hoursPerDay = 24

// civilDay returns the calendar day of t in loc, as midnight UTC.
// Arithmetic on these values is immune to DST shifts in loc.
func civilDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the number of calendar days from one civil day to another.
// The result is negative when to precedes from.
func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / hoursPerDay)
}

// startOfDay converts a civil day back into the instant its midnight occurs in loc.
func startOfDay(day time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
}

// SameDay reports whether a and b fall on the same calendar day in loc
func SameDay(a, b time.Time, loc *time.Location) bool {
	return civilDay(a, loc).Equal(civilDay(b, loc))
}

// DayKey formats the calendar day of t in loc as YYYY-MM-DD
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.DateOnly)
}
