package core

import "sync/atomic"

var shutdownFlag uint32

// TryShutdown halts timer dispatch and latches the shutdown state with a
// reason, mirroring the teacher's emergency-stop path (core/commands.go)
// but without the wire-protocol host notification: a single-process host
// has no remote MCU to report to, so the reason is just logged.
func TryShutdown(reason string) {
	if atomic.SwapUint32(&shutdownFlag, 1) != 0 {
		return // already shut down
	}
	Errorf("shutdown: %s", reason)
}

// IsShutdown reports whether TryShutdown has been called.
func IsShutdown() bool {
	return atomic.LoadUint32(&shutdownFlag) != 0
}

// ResetShutdown clears the shutdown latch, used by tests and by a
// supervising process that wants to restart motion after a fault.
func ResetShutdown() {
	atomic.StoreUint32(&shutdownFlag, 0)
}
