package clock

import "time"

// Clock is the time source for game start, end and expiry decisions
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// New creates a SystemClock
func New() *SystemClock {
	return &SystemClock{}
}

// Now returns the current time in UTC, truncated to the millisecond
// precision the SQL stores keep, so values survive a round trip unchanged.
func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
