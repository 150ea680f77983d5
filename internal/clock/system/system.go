// Package system provides the wall clock used to stamp sessions and progress events.
package system

import "time"

// Clock implements sequencer.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Since reports the elapsed time from t, keeping the monotonic reading when t came from Now.
func (Clock) Since(t time.Time) time.Duration {
	return time.Since(t)
}
