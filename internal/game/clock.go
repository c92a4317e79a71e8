package game

import "time"

// TimerHandle cancels a pending callback. Cancel after firing is a no-op.
type TimerHandle interface {
	Cancel()
}

// Clock abstracts wall time and one-shot scheduling so the question cycle can
// run against a fake clock in tests instead of real delays.
type Clock interface {
	Now() time.Time
	ScheduleOnce(d time.Duration, fn func()) TimerHandle
}

type realClock struct{}

// NewClock returns the wall-clock implementation backed by time.AfterFunc.
func NewClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) ScheduleOnce(d time.Duration, fn func()) TimerHandle {
	return realTimer{timer: time.AfterFunc(d, fn)}
}

type realTimer struct {
	timer *time.Timer
}

func (t realTimer) Cancel() {
	t.timer.Stop()
}
