package jobs

import "time"

// Scheduler supplies the delays between poll attempts.
type Scheduler interface {
	After(d time.Duration) <-chan time.Time
}

// WallClock is the Scheduler backed by real timers.
type WallClock struct{}

func (WallClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
