package stepgen

// Endstop reports whether an axis has reached its physical limit switch.
// Defined locally so stepgen has no dependency on the core package; any
// type with this method (e.g. core's digital endstop) satisfies it.
type Endstop interface {
	Triggered() bool
}

// HomingStepper steps an axis at a constant rate in a fixed direction
// until its endstop triggers. An axis with no endstop configured is
// exhausted on the first call — it contributes no steps to a homing move,
// which is intentional (spec.md §9): a machine may home fewer axes than
// it has.
//
// Grounded on original_source's src/drivers/axisstepper.h homing mode and
// the teacher's core/endstop.go oversampling confirm loop, simplified here
// to a direct boolean poll since there is no wire protocol to batch over.
type HomingStepper struct {
	interval float64 // seconds between steps: 1/(|v_home|*stepsPerMM)
	dir      Direction
	endstop  Endstop
	t        float64
	done     bool
}

// NewHomingStepper builds a homing iterator. endstop may be nil, in which
// case the axis contributes no homing steps.
func NewHomingStepper(vHome, stepsPerMM float64, dir Direction, endstop Endstop) *HomingStepper {
	if endstop == nil || vHome <= 0 || stepsPerMM <= 0 {
		return &HomingStepper{done: true}
	}
	return &HomingStepper{
		interval: 1.0 / (vHome * stepsPerMM),
		dir:      dir,
		endstop:  endstop,
	}
}

func (h *HomingStepper) NextStep() (float64, Direction, bool) {
	if h.done {
		return 0, 0, false
	}
	if h.endstop.Triggered() {
		h.done = true
		return 0, 0, false
	}
	h.t += h.interval
	return h.t, h.dir, true
}
