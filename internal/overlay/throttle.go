// Package overlay keeps the throttled overlay texts and draws boxes, hand
// landmarks and text onto display frames.
package overlay

import "time"

// Throttle gates an update to at most once per Interval.
type Throttle struct {
	Interval time.Duration
	last     time.Time
}

// NewThrottle returns a throttle whose first window starts at start.
func NewThrottle(interval time.Duration, start time.Time) *Throttle {
	return &Throttle{Interval: interval, last: start}
}

// Ready reports whether Interval has elapsed since the last window began.
// When it has, a new window begins at now.
func (t *Throttle) Ready(now time.Time) bool {
	if now.Sub(t.last) < t.Interval {
		return false
	}
	t.last = now
	return true
}

// Since returns the time elapsed since the last window began.
func (t *Throttle) Since(now time.Time) time.Duration {
	return now.Sub(t.last)
}
