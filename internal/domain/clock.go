package domain

import "time"

// Clock abstracts wall-clock time so lateness and check-in window decisions
// are deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system time in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
