//go:build !tinygo

package core

import "sync"

// State is the lock token returned by disableInterrupts, mirroring the
// teacher's MCU critical-section API shape. On the host there is no
// interrupt controller to mask, so a package mutex plays the same role:
// the scheduler/endstop/trsync state machines still need their
// read-modify-write sequences to run without a concurrent goroutine
// observing a half-updated Timer list.
type State uintptr

var criticalSection sync.Mutex

// disableInterrupts acquires the critical-section lock.
func disableInterrupts() State {
	criticalSection.Lock()
	return 0
}

// restoreInterrupts releases the critical-section lock.
func restoreInterrupts(State) {
	criticalSection.Unlock()
}
