// Package clock supplies the reference date for billing runs.
package clock

import "time"

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Func adapts a function to Clock.
type Func func() time.Time

// Now implements Clock.
func (f Func) Now() time.Time { return f() }

// System is the wall clock in UTC.
var System Clock = Func(func() time.Time { return time.Now().UTC() })

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) Clock {
	return Func(func() time.Time { return t })
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthStart returns midnight UTC on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
