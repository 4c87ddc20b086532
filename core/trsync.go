// Multi-axis trigger synchronization for homing: when any one endstop in a
// group fires, every axis moving as part of that group must stop at the
// same planner step rather than finishing its own independent travel.
package core

// TriggerSync flags.
const (
	TSF_CAN_TRIGGER = 1 << 0 // trigger is armed
	TSF_TRIGGERED   = 1 << 1 // trigger has fired
)

// TriggerSignal is a callback registered with a TriggerSync, invoked with
// the reason code when the group triggers.
type TriggerSignal struct {
	Callback func(reason uint8)
	Next     *TriggerSignal
}

// TriggerSync coordinates a group of endstops homing together (spec.md's
// multi-axis homing: all axes in the move must stop the instant any one
// of their endstops confirms a trigger, not wait for their own).
//
// Adapted from the teacher's trsync_* wire-protocol object: the same
// arm/trigger/callback state machine, with the `trsync_start`/
// `trsync_set_timeout`/`trsync_trigger` command handlers and their OID
// registry dropped, since this port has no remote MCU to address by OID —
// callers hold a *TriggerSync directly.
type TriggerSync struct {
	Flags         uint8
	TriggerReason uint8
	ExpireReason  uint8
	ReportTicks   uint32
	ReportTimer   Timer
	ExpireTimer   Timer
	Signals       *TriggerSignal
}

// NewTriggerSync returns an armed TriggerSync ready to receive signals.
func NewTriggerSync(expireReason uint8) *TriggerSync {
	return &TriggerSync{Flags: TSF_CAN_TRIGGER, ExpireReason: expireReason}
}

// ArmTimeout schedules this sync to self-trigger with ExpireReason if
// nothing else has triggered it by deadline (a tick value comparable to
// GetTime()), guarding against a homing move that never reaches any
// endstop because of a wiring fault.
func (ts *TriggerSync) ArmTimeout(deadline uint32) {
	ts.ExpireTimer.WakeTime = deadline
	ts.ExpireTimer.Handler = func(t *Timer) uint8 {
		TriggerSyncDoTrigger(ts, ts.ExpireReason)
		return SF_DONE
	}
	ScheduleTimer(&ts.ExpireTimer)
}

// TriggerSyncDoTrigger fires the group, invoking every registered signal
// exactly once. Idempotent: a second call after the first trigger is a
// no-op, so the first endstop to fire wins even if others fire moments
// later.
func TriggerSyncDoTrigger(ts *TriggerSync, reason uint8) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if ts.Flags&TSF_CAN_TRIGGER == 0 {
		return
	}
	ts.Flags &^= TSF_CAN_TRIGGER
	ts.Flags |= TSF_TRIGGERED
	ts.TriggerReason = reason

	for signal := ts.Signals; signal != nil; signal = signal.Next {
		if signal.Callback != nil {
			signal.Callback(reason)
		}
	}
}

// TriggerSyncAddSignal registers callback to run when ts triggers, e.g. an
// axis's homing stepper halting itself.
func TriggerSyncAddSignal(ts *TriggerSync, callback func(reason uint8)) *TriggerSignal {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	signal := &TriggerSignal{Callback: callback, Next: ts.Signals}
	ts.Signals = signal
	return signal
}

// Triggered reports whether this group has fired.
func (ts *TriggerSync) Triggered() bool {
	return ts.Flags&TSF_TRIGGERED != 0
}
