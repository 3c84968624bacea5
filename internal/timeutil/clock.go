package timeutil

import "time"

// Clock abstracts wall-clock time and timer creation so schedulers can be
// driven by a manual clock in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancelable pending callback.
// Stop reports whether the callback was prevented from running.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// System returns the real wall-clock implementation.
func System() Clock { return systemClock{} }
