// Package system provides the wall clock used to time crawl runs.
package system

import "time"

// Clock implements crawler.Clock on top of time.Now. The returned values keep
// their monotonic reading, so Sub between two of them is immune to wall-clock
// steps during a run.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current local time.
func (Clock) Now() time.Time {
	return time.Now()
}
