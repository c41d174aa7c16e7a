package testutil

import (
	"sync"
	"time"
)

// DefaultDate is the date a DeterministicClock starts on when none is given.
var DefaultDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock provides a thread-safe settable calendar for tests.
//
// Today never moves on its own: audit stamps stay identical across runs
// until the test advances or sets the date. It satisfies crud.Clock.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	today time.Time
}

// NewDeterministicClock creates a clock showing start, or DefaultDate when
// start is zero.
func NewDeterministicClock(start time.Time) *DeterministicClock {
	if start.IsZero() {
		start = DefaultDate
	}
	start = midnight(start)
	return &DeterministicClock{start: start, today: start}
}

// Today returns the current date.
func (c *DeterministicClock) Today() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.today
}

// Advance moves the clock forward by days and returns the new date.
func (c *DeterministicClock) Advance(days int) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.today = c.today.AddDate(0, 0, days)
	return c.today
}

// Set moves the clock to the given date.
func (c *DeterministicClock) Set(day time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.today = midnight(day)
}

// Reset returns the clock to its start date.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.today = c.start
}

func midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
