// Endstop handling for GPIO-based homing switches: mechanical switches,
// hall-effect sensors, optical interrupters.
package core

import "sync/atomic"

// Endstop flags.
const (
	ESF_PIN_HIGH = 1 << 0 // expected pin level when triggered (1=high, 0=low)
	ESF_ARMED    = 1 << 1 // currently oversampling for a homing trigger
)

// Endstop polls a GPIO pin on a timer and confirms a trigger only after
// SampleCount consecutive samples agree, rejecting the single-sample
// glitches a bouncy mechanical switch produces mid-travel.
//
// Adapted from the teacher's wire-protocol Endstop object: the same
// two-stage oversampling state machine (endstopEvent then
// endstopOversampleEvent), with config_endstop/endstop_home/
// endstop_query_state command handlers and the OID registry dropped — a
// planner axis now owns its *Endstop directly and reads Triggered()
// (satisfying stepgen.Endstop) instead of a host polling it by OID.
type Endstop struct {
	Pin         GPIOPin
	Flags       uint8
	Timer       Timer
	SampleTicks uint32 // ticks (microseconds, see core.TimerFromUS) between samples
	SampleCount uint8
	triggerCount uint8

	sync *TriggerSync
	reason uint8 // reason code passed to sync on a confirmed trigger
	triggered uint32 // atomic bool, set once the oversample confirms
}

// NewEndstop configures a GPIO pin as a homing input (pulled up or down to
// its rest state) and returns an Endstop ready to Arm.
func NewEndstop(pin GPIOPin, pullUp bool, expectHigh bool, sampleTicks uint32, sampleCount uint8) (*Endstop, error) {
	if pullUp {
		if err := MustGPIO().ConfigureInputPullUp(pin); err != nil {
			return nil, err
		}
	} else {
		if err := MustGPIO().ConfigureInputPullDown(pin); err != nil {
			return nil, err
		}
	}
	es := &Endstop{Pin: pin, SampleTicks: sampleTicks, SampleCount: sampleCount}
	if expectHigh {
		es.Flags |= ESF_PIN_HIGH
	}
	return es, nil
}

// Arm starts oversampling for a trigger, reporting it to sync with reason
// when confirmed. Call once per homing move; Triggered() resets to false.
func (es *Endstop) Arm(sync *TriggerSync, reason uint8) {
	atomic.StoreUint32(&es.triggered, 0)
	es.triggerCount = es.SampleCount
	es.sync = sync
	es.reason = reason
	es.Flags |= ESF_ARMED

	es.Timer.Next = nil
	es.Timer.WakeTime = GetTime() + es.SampleTicks
	es.Timer.Handler = es.sampleEvent
	ScheduleTimer(&es.Timer)
}

// Disarm stops oversampling without confirming a trigger.
func (es *Endstop) Disarm() {
	es.Flags &^= ESF_ARMED
	es.Timer.Next = nil
}

// Triggered reports whether the oversample loop has confirmed a trigger
// since the last Arm. Satisfies stepgen.Endstop.
func (es *Endstop) Triggered() bool {
	return atomic.LoadUint32(&es.triggered) != 0
}

// expectHigh reports the pin level this endstop treats as triggered.
func (es *Endstop) expectHigh() bool { return es.Flags&ESF_PIN_HIGH != 0 }

// sampleEvent is the first-stage check: on a single matching sample it
// switches to the oversample handler to confirm; otherwise it reschedules
// the same check.
func (es *Endstop) sampleEvent(t *Timer) uint8 {
	if es.Flags&ESF_ARMED == 0 {
		return SF_DONE
	}
	if es.pinMatches() {
		es.triggerCount = es.SampleCount
		t.Handler = es.oversampleEvent
		return es.oversampleEvent(t)
	}
	t.WakeTime += es.SampleTicks
	return SF_RESCHEDULE
}

// oversampleEvent requires SampleCount consecutive matching samples
// before confirming, falling back to sampleEvent on any mismatch.
func (es *Endstop) oversampleEvent(t *Timer) uint8 {
	if es.Flags&ESF_ARMED == 0 {
		return SF_DONE
	}
	if !es.pinMatches() {
		t.Handler = es.sampleEvent
		t.WakeTime += es.SampleTicks
		return SF_RESCHEDULE
	}
	es.triggerCount--
	if es.triggerCount == 0 {
		atomic.StoreUint32(&es.triggered, 1)
		es.Flags &^= ESF_ARMED
		if es.sync != nil {
			TriggerSyncDoTrigger(es.sync, es.reason)
		}
		return SF_DONE
	}
	t.WakeTime += es.SampleTicks
	return SF_RESCHEDULE
}

func (es *Endstop) pinMatches() bool {
	return MustGPIO().ReadPin(es.Pin) == es.expectHigh()
}
