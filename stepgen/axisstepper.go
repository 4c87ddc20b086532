// Package stepgen implements the per-axis step iterator (C2): for one
// mechanical axis, it produces the monotonically increasing relative times
// at which that axis should fire its next pulse, along either a linear
// (constant-velocity) path or a homing path.
//
// Grounded on original_source's src/drivers/axisstepper.h, linearstepper.h,
// and lineardeltastepper.h (the exact iterator contract and the quadratic
// root-solving algorithm for delta carriages), generalized with the
// teacher's own "one small interface, several concrete implementations"
// pattern (core/gpio_hal.go, core/stepper_hal.go).
package stepgen

// Direction is the polarity of a single step pulse.
type Direction int8

const (
	Negative Direction = -1
	Positive Direction = 1
)

// AxisStepper produces the sequence of times at which a single mechanical
// axis changes its step count by +-1, relative to the move's base time.
//
// Contract (spec.md §4.2): NextStep either returns (t, dir, true) with t
// strictly greater than the previously returned t, or returns (_, _, false)
// once the iterator is exhausted for this move. Times are not required to
// be globally monotonic across different axes of the same move — only the
// planner's merge guarantees that.
type AxisStepper interface {
	NextStep() (t float64, dir Direction, ok bool)
}
