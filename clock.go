package signup

import "time"

// Timer is a scheduled callback that can be stopped.
type Timer interface {
	Stop() bool
}

// Clock abstracts wall-clock time and scheduling so TTL behavior can be
// tested without real timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns the Clock backed by package time.
func SystemClock() Clock {
	return realClock{}
}

func normalizeClock(c Clock) Clock {
	if c == nil {
		return realClock{}
	}
	return c
}
