package planner

import (
	"math"

	"printipi/kinematics"
	"printipi/machine"
	"printipi/stepgen"
)

// state is the planner's coarse mode, mirroring the teacher's own small
// enum-state machines (core/endstop.go, core/trsync.go).
type state int8

const (
	stateIdle state = iota
	stateMoving
	stateHoming
)

type axisSlot struct {
	stepper stepgen.AxisStepper
	pin     uint32
	t       float64
	dir     stepgen.Direction
	ok      bool
}

// Planner is the motion planner (C3): it owns the machine's mechanical
// position and merges per-axis step iterators into a single ordered
// OutputEvent stream (spec.md §4.3).
//
// Grounded on the teacher's standalone/planner/planner.go for the overall
// "merge iterators, apply acceleration, advance position" shape, with the
// trapezoidal math replaced by the spec's own profile and the tie-break
// rule fixed explicitly (spec.md §9 open question).
type Planner struct {
	coordMap kinematics.CoordMap
	pins     []uint32 // one GPIO pin per mechanical axis, same order as coordMap.AxisNames()

	homeDirs []stepgen.Direction // homing direction per axis
	endstops []stepgen.Endstop   // may contain nils

	accelFactory Factory

	mechanical machine.Mechanical
	state      state
	homing     bool

	baseTime float64
	duration float64
	profile  AccelProfile
	axes     []axisSlot
}

// New builds a planner for a machine with the given coordinate map, one
// GPIO pin per mechanical axis (same order as coordMap.AxisNames()), a
// starting mechanical position, and the acceleration-profile factory every
// move and homing plan is built with.
func New(coordMap kinematics.CoordMap, pins []uint32, homeDirs []stepgen.Direction, endstops []stepgen.Endstop, start machine.Mechanical, accelFactory Factory) *Planner {
	return &Planner{
		coordMap:     coordMap,
		pins:         pins,
		homeDirs:     homeDirs,
		endstops:     endstops,
		accelFactory: accelFactory,
		mechanical:   start.Clone(),
		state:        stateIdle,
	}
}

// Mechanical returns a snapshot of the current mechanical position.
func (p *Planner) Mechanical() machine.Mechanical { return p.mechanical.Clone() }

// ReadyForNextMove reports whether the current plan is exhausted.
func (p *Planner) ReadyForNextMove() bool { return p.state == stateIdle }

// MoveTo starts a Cartesian move (spec.md §4.3). vmaxXYZ, vminE, and vmaxE
// must all be positive. Returns ErrBusy if the previous move has not yet
// been exhausted.
func (p *Planner) MoveTo(baseTime float64, target machine.XYZE, vmaxXYZ, vminE, vmaxE float64) error {
	if p.state != stateIdle {
		return ErrBusy
	}
	target = p.coordMap.Bound(target)
	cur := p.coordMap.XYZEFromMechanical(p.mechanical)

	dx := target.X - cur.X
	dy := target.Y - cur.Y
	dz := target.Z - cur.Z
	de := target.E - cur.E
	dxyz := math.Sqrt(dx*dx + dy*dy + dz*dz)

	var duration float64
	var vel machine.Velocity

	switch {
	case dxyz > 0:
		duration = dxyz / vmaxXYZ
		vel = machine.Velocity{X: dx / duration, Y: dy / duration, Z: dz / duration, E: de / duration}
		if math.Abs(vel.E) > vmaxE {
			duration = math.Abs(de) / vmaxE
			vel = machine.Velocity{X: dx / duration, Y: dy / duration, Z: dz / duration, E: de / duration}
		} else if de != 0 && math.Abs(vel.E) < vminE {
			duration = math.Abs(de) / vminE
			vel = machine.Velocity{X: dx / duration, Y: dy / duration, Z: dz / duration, E: de / duration}
		}
	case de != 0:
		duration = math.Abs(de) / vmaxE
		vel = machine.Velocity{E: de / duration}
	default:
		// Zero-length move: start already exhausted.
		duration = 0
	}

	p.beginMove(baseTime, cur, vel, duration, vmaxXYZ, false)
	return nil
}

// HomeEndstops starts an infinite-duration homing plan (spec.md §4.3):
// every axis with a configured endstop steps at vHome toward its fixed
// homing direction until that endstop triggers; axes without one are
// exhausted immediately and contribute no steps (spec.md §9).
func (p *Planner) HomeEndstops(baseTime, vHome float64) error {
	if p.state != stateIdle {
		return ErrBusy
	}
	names := p.coordMap.AxisNames()
	axes := make([]axisSlot, len(names))
	for i := range names {
		dir := stepgen.Negative
		if i < len(p.homeDirs) {
			dir = p.homeDirs[i]
		}
		var es stepgen.Endstop
		if i < len(p.endstops) {
			es = p.endstops[i]
		}
		stepper := stepgen.NewHomingStepper(vHome, p.coordMap.StepsPerMM(i), dir, es)
		axes[i] = axisSlot{stepper: stepper, pin: p.pins[i]}
		axes[i].t, axes[i].dir, axes[i].ok = stepper.NextStep()
	}

	p.baseTime = baseTime
	p.duration = math.Inf(1)
	p.profile = p.accelFactory(p.duration, vHome)
	p.axes = axes
	p.state = stateHoming
	p.homing = true
	return nil
}

func (p *Planner) beginMove(baseTime float64, start machine.XYZE, vel machine.Velocity, duration, vmax float64, homing bool) {
	steppers := p.coordMap.AxisSteppers(start, vel, p.mechanical)
	axes := make([]axisSlot, len(steppers))
	for i, st := range steppers {
		axes[i] = axisSlot{stepper: st, pin: p.pins[i]}
		axes[i].t, axes[i].dir, axes[i].ok = st.NextStep()
	}

	p.baseTime = baseTime
	p.duration = duration
	p.profile = p.accelFactory(duration, vmax)
	p.axes = axes
	p.state = stateMoving
	p.homing = homing
}

// NextStep implements the merge algorithm (spec.md §4.3): it selects the
// axis iterator whose next candidate time is smallest, applies the
// acceleration profile, advances mechanical position, and returns the
// resulting event. ok=false means the plan is exhausted (spec.md's `End`).
func (p *Planner) NextStep() (OutputEvent, bool) {
	if p.state == stateIdle {
		return OutputEvent{}, false
	}

	idx, found := p.selectNext()
	if !found {
		p.finish()
		return OutputEvent{}, false
	}

	sel := p.axes[idx]
	if math.IsNaN(sel.t) || sel.t > p.duration*(1+1e-9) {
		p.finish()
		return OutputEvent{}, false
	}
	if sel.t > p.duration {
		// The iterator's accumulated rounding put the move's final step a
		// few ulps past the nominal end; it lands exactly on the end.
		sel.t = p.duration
	}
	tPrime := p.profile.Transform(sel.t)

	level := Low
	if sel.dir == stepgen.Positive {
		level = High
	}
	ev := OutputEvent{Pin: sel.pin, Level: level, TAbs: p.baseTime + tPrime}

	if sel.dir == stepgen.Positive {
		p.mechanical[idx]++
	} else {
		p.mechanical[idx]--
	}
	p.axes[idx].t, p.axes[idx].dir, p.axes[idx].ok = p.axes[idx].stepper.NextStep()

	return ev, true
}

// selectNext picks the live axis slot with the smallest positive
// candidate time, breaking ties by ascending axis index — spec.md §9
// records the source's rule as pure index-order, axis index is the
// primary (and in practice only reachable) discriminator. Direction
// never enters the comparison: two distinct loop iterations always have
// distinct indices, so the index rule alone already resolves every tie.
func (p *Planner) selectNext() (int, bool) {
	best := -1
	for i := range p.axes {
		a := p.axes[i]
		if !a.ok || math.IsNaN(a.t) || a.t <= 0 {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		b := p.axes[best]
		if a.t < b.t {
			best = i
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

func (p *Planner) finish() {
	if p.homing {
		p.mechanical = p.coordMap.HomePosition(p.mechanical)
	}
	p.state = stateIdle
	p.homing = false
	p.axes = nil
}
