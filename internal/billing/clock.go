package billing

import (
	"sync"
	"time"
)

// Clock supplies the current date to the billing engine.
type Clock interface {
	Today() time.Time
}

// Date truncates t to a civil date at midnight UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddYears moves a civil date by whole years. Feb 29 lands on Feb 28 in a
// non-leap target year instead of rolling into March.
func AddYears(t time.Time, years int) time.Time {
	t = Date(t)
	y, m, d := t.Year()+years, t.Month(), t.Day()
	if last := time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day(); d > last {
		d = last
	}
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Today returns the current UTC date.
func (SystemClock) Today() time.Time { return Date(time.Now().UTC()) }

// FixedClock is a settable clock for tests and back-dated imports.
type FixedClock struct {
	mu    sync.Mutex
	today time.Time
}

// NewFixedClock returns a clock stopped at the given date.
func NewFixedClock(today time.Time) *FixedClock {
	return &FixedClock{today: Date(today)}
}

// Today returns the configured date.
func (c *FixedClock) Today() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.today
}

// Set moves the clock to the given date.
func (c *FixedClock) Set(today time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.today = Date(today)
}

// Advance moves the clock forward by the given number of days.
func (c *FixedClock) Advance(days int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.today = c.today.AddDate(0, 0, days)
}
