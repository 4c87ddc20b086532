package stepgen

import "math"

// LinearStepper iterates a mechanical axis that moves at a constant
// velocity for the whole move: every Cartesian axis under both Cartesian
// and linear-delta kinematics (spec.md §4.2, "Cartesian axis" case — the
// extruder axis always uses this form, as does every axis of a Cartesian
// machine).
type LinearStepper struct {
	interval float64 // seconds between steps: 1/(|v|*stepsPerMM)
	dir      Direction
	t        float64
	active   bool
}

// NewLinearStepper builds an iterator for an axis moving at Cartesian
// velocity v (mm/s) with the given steps/mm. A zero velocity produces an
// iterator that is immediately exhausted.
func NewLinearStepper(v, stepsPerMM float64) *LinearStepper {
	if v == 0 || stepsPerMM <= 0 {
		return &LinearStepper{active: false}
	}
	rate := math.Abs(v) * stepsPerMM
	dir := Positive
	if v < 0 {
		dir = Negative
	}
	return &LinearStepper{
		interval: 1.0 / rate,
		dir:      dir,
		active:   true,
	}
}

func (s *LinearStepper) NextStep() (float64, Direction, bool) {
	if !s.active {
		return 0, 0, false
	}
	s.t += s.interval
	return s.t, s.dir, true
}
