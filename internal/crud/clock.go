package crud

import "time"

// Clock supplies the date stamped into audit fields.
type Clock interface {
	// Today returns the current date at midnight UTC.
	Today() time.Time
}

// SystemClock reads the wall clock.
//
// Thread-safety: SystemClock is stateless and safe for concurrent use.
type SystemClock struct{}

// Today returns the current UTC date.
func (SystemClock) Today() time.Time {
	return Date(time.Now())
}

// Date truncates t to midnight UTC of its UTC calendar day.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
