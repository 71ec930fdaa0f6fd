// Package clock abstracts time so rate windows and quota days are testable.
package clock

import "time"

// Clock supplies the current instant. Implementations must be safe for
// concurrent use.
type Clock interface {
	Now() time.Time
}

// System is the process wall clock.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time { return time.Now() }

// Day formats an instant as a calendar day in the process-local timezone.
// All daily counters are keyed by this value.
func Day(t time.Time) string { return t.Format("2006-01-02") }
