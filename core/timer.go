package core

import "time"

// TimerFreq is the tick rate this port's clock runs at: one tick per
// microsecond of wall-clock time. The teacher's MCU build counts real
// 12MHz hardware timer ticks; on the host there is no such counter, so
// GetTime reads time.Now() instead and TimerFromUS/TimerToUS become the
// identity conversion (spec.md's tempctl PID cadence and endstop debounce
// timers are the only callers left that care about the unit).
const TimerFreq = 1000000

var bootTime time.Time

// GetTime returns microseconds since TimerInit was called.
func GetTime() uint32 {
	return uint32(time.Since(bootTime).Microseconds())
}

// SetTime is kept for test code that wants to pin the clock; on the host
// build it has no effect, since GetTime always reads the real clock.
func SetTime(ticks uint32) {}

// GetUptime returns 64-bit microsecond uptime.
func GetUptime() uint64 {
	return uint64(time.Since(bootTime).Microseconds())
}

// TimerFromUS converts microseconds to ticks (identity on this port).
func TimerFromUS(us uint32) uint32 { return us }

// TimerToUS converts ticks to microseconds (identity on this port).
func TimerToUS(ticks uint32) uint32 { return ticks }

// TimerInit starts the clock used by GetTime. Idempotent: endstop homing
// and tempctl each call this expecting a shared process-wide clock, so
// only the first call sets bootTime.
func TimerInit() {
	if bootTime.IsZero() {
		bootTime = time.Now()
	}
}

// ProcessTimers dispatches every timer due by now. Call this from a
// tight loop (or its own goroutine, see RunTimerLoop) driving tempctl's
// PID cadence and endstop oversampling (spec.md §9's adaptation of the
// teacher's cooperative MCU scheduler to a host process).
func ProcessTimers() {
	currentTime = GetTime()
	TimerDispatch()
}

// RunTimerLoop runs ProcessTimers every tick until stop is closed. tick
// should be small relative to the shortest timer period registered
// (cmd/printipi-host samples endstops every 500us; tempctl polls an ADC
// read every 500us and starts a new read every 3s).
func RunTimerLoop(tick time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			ProcessTimers()
		}
	}
}
