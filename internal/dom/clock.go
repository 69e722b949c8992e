package dom

import "time"

// Timer is a stoppable pending callback.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. Components that delay work on a document
// take one so tests can drive time by hand.
type AfterFunc func(d time.Duration, f func()) Timer

// RealAfterFunc wraps time.AfterFunc.
func RealAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
