// Package tempctl drives a heater's PWM duty cycle from a thermistor
// reading via a PID loop (spec.md §6 names this an external collaborator;
// this port implements it since every real build of this firmware ships
// one, and the teacher's core/adc_hal.go already shapes an ADC-sampling
// HAL for exactly this).
package tempctl

import "time"

// PID is a proportional-integral-derivative controller producing a duty
// cycle in [0,1] from a setpoint and a measured process value.
//
// Ported directly from original_source's common/pid.h: same anti-windup
// rule (undo the integral accumulation for the step that pushed output
// out of range, rather than clamping the integral term itself) and the
// same finite-difference derivative on the process value rather than the
// error, so a setpoint change doesn't cause a derivative kick.
type PID struct {
	P, I, D float64

	errorI    float64
	lastValue float64
	lastTime  time.Time
}

// New returns a PID with the given gains.
func New(p, i, d float64) *PID {
	return &PID{P: p, I: i, D: d}
}

// Feed reports a new process-value reading and returns the recalculated
// output, saturated to [0,1].
func (pid *PID) Feed(setpoint, pv float64, now time.Time) float64 {
	deltaT := pid.refreshTime(now)
	if deltaT <= 0 {
		deltaT = 1e-3
	}

	error := setpoint - pv
	errorD := (pv - pid.lastValue) / deltaT
	pid.lastValue = pv

	update := error * deltaT
	pid.errorI += update

	output := pid.P*error + pid.I*pid.errorI + pid.D*errorD

	if output < 0 {
		if error < 0 {
			pid.errorI -= update
		}
		return 0
	}
	if output > 1 {
		if error > 0 {
			pid.errorI -= update
		}
		return 1
	}
	return output
}

func (pid *PID) refreshTime(now time.Time) float64 {
	if pid.lastTime.IsZero() {
		pid.lastTime = now
		return 0
	}
	dt := now.Sub(pid.lastTime).Seconds()
	pid.lastTime = now
	return dt
}
