// Package matching decides whether two measurement instants describe the
// same weigh-in.
package matching

import "time"

// Match reports whether a and b are no more than tolerance apart. The
// relation is symmetric and compares absolute instants, so the zones of a
// and b do not matter. A negative tolerance matches nothing.
func Match(a, b time.Time, tolerance time.Duration) bool {
	if tolerance < 0 {
		return false
	}
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

// Seconds converts a whole number of seconds to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
