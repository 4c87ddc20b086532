// Package planner implements the motion planner (C3): it turns a target
// Cartesian move or a homing request into a stream of OutputEvents by
// merging the per-axis step iterators from stepgen and reshaping their
// timing through an acceleration profile.
package planner

import "errors"

// Level is the pin level an OutputEvent requests.
type Level int8

const (
	Low  Level = 0
	High Level = 1
)

// OutputEvent is a single pin transition at an absolute time, the unit of
// work handed to the hardware scheduler (spec.md §3/§6).
type OutputEvent struct {
	Pin   uint32
	Level Level
	TAbs  float64
}

// ErrBusy is returned by MoveTo or HomeEndstops when the previous plan has
// not yet been exhausted (spec.md §7, "planner busy").
var ErrBusy = errors.New("planner: busy, previous move not exhausted")
