/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "time"

// timerHandle is a cancellable deferred callback. Stop reports whether it
// prevented the callback from running; stopping twice is harmless.
type timerHandle interface {
	Stop() bool
}

// scheduler mints cancellable timers. Every phase advance and disconnect
// grace window goes through one of these, so tests can substitute a manual
// implementation and drive expiry by hand instead of sleeping.
type scheduler interface {
	AfterFunc(d time.Duration, f func()) timerHandle
}

type wallScheduler struct{}

func (wallScheduler) AfterFunc(d time.Duration, f func()) timerHandle {
	return time.AfterFunc(d, f)
}
