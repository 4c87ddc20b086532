package kinematics

import (
	"fmt"
	"math"

	"printipi/machine"
	"printipi/stepgen"
)

// LinearDelta implements CoordMap for a rail-based delta robot (e.g. a
// Kossel): three carriages (A, B, C) ride vertical rails spaced 120 degrees
// apart, each linked to the end effector by a rigid arm of length L.
//
// Tower A sits at (x=0, y=+r) (90 degrees from +x, measuring y as "north"),
// tower B at 330 degrees (+x side), tower C at 210 degrees — spec.md §4.1.1. The
// forward-kinematics closed form (xyzeFromMechanical) is a direct port of
// original_source's src/drivers/lineardeltacoordmap.h, including its two
// divide-by-zero special cases (spec.md §4.1 requires both).
type LinearDelta struct {
	r, l, h, buildRadius, zMin float64
	stepsPerMMCarriage         float64
	stepsPerMMExt              float64
	leveling                   machine.LevelingMatrix
}

// NewLinearDelta builds a linear-delta coordinate map from machine config.
func NewLinearDelta(cfg *machine.MachineConfig) (*LinearDelta, error) {
	d := cfg.Delta
	if d.RodLength <= 0 || d.TowerRadius <= 0 {
		return nil, fmt.Errorf("kinematics: linear_delta requires positive rod_length and tower_radius")
	}
	if d.RodLength <= d.TowerRadius {
		return nil, fmt.Errorf("kinematics: rod_length must exceed tower_radius")
	}
	axisA, ok := cfg.Axes["a"]
	if !ok {
		return nil, fmt.Errorf("kinematics: linear_delta requires axis \"a\" in config")
	}
	axisE, ok := cfg.Axes["e"]
	if !ok {
		return nil, fmt.Errorf("kinematics: linear_delta requires axis \"e\" in config")
	}
	leveling := d.Leveling
	if leveling == (machine.LevelingMatrix{}) {
		leveling = machine.Identity()
	}
	zMin := d.ZMin
	if zMin == 0 {
		zMin = -2 // matches original_source's MIN_Z(): "useful to go a little under z=0 when tuning"
	}
	return &LinearDelta{
		r:                  d.TowerRadius,
		l:                  d.RodLength,
		h:                  d.HomeHeight,
		buildRadius:        d.BuildRadius,
		zMin:               zMin,
		stepsPerMMCarriage: axisA.StepsPerMM,
		stepsPerMMExt:      axisE.StepsPerMM,
		leveling:           leveling,
	}, nil
}

func (d *LinearDelta) AxisNames() []string { return []string{"a", "b", "c", "e"} }

func (d *LinearDelta) StepsPerMM(axis int) float64 {
	if axis == 3 {
		return d.stepsPerMMExt
	}
	return d.stepsPerMMCarriage
}

// reach is the maximum carriage-to-effector vertical offset: sqrt(L^2-r^2).
func (d *LinearDelta) reach() float64 {
	return math.Sqrt(d.l*d.l - d.r*d.r)
}

// towerPositions returns the (x,y) position of towers A, B, C: spaced 120
// degrees apart at angles 90, 330, 210 degrees (spec.md §4.1.1), matching
// the tower convention XYZEFromMechanical's closed form assumes — A=(0,r),
// B=(+sqrt(3)/2*r,-r/2), C=(-sqrt(3)/2*r,-r/2). Walking the angles in this
// order (rather than ascending 90/210/330) keeps B and C in step with the
// forward-kinematics port instead of mirrored about the y-axis.
func (d *LinearDelta) towerPositions() [3][2]float64 {
	const deg = math.Pi / 180
	angles := [3]float64{90 * deg, 330 * deg, 210 * deg}
	var out [3][2]float64
	for i, a := range angles {
		out[i] = [2]float64{d.r * math.Cos(a), d.r * math.Sin(a)}
	}
	return out
}

// AxisSteppers builds the three quadratic-root-solving carriage iterators
// plus a uniform-rate linear iterator for the extruder.
func (d *LinearDelta) AxisSteppers(start machine.XYZE, vel machine.Velocity, mechanical machine.Mechanical) []stepgen.AxisStepper {
	towers := d.towerPositions()
	out := make([]stepgen.AxisStepper, 4)
	for i, t := range towers {
		out[i] = stepgen.NewDeltaCarriageStepper(
			start.X, start.Y, start.Z,
			vel.X, vel.Y, vel.Z,
			t[0], t[1], d.l, d.stepsPerMMCarriage,
			mechanical[i],
		)
	}
	out[3] = stepgen.NewLinearStepper(vel.E, d.stepsPerMMExt)
	return out
}

// HomePosition returns all three carriages at their maximum reachable
// height per spec.md §4.1: ceil((h+sqrt(L^2-r^2))*steps_per_mm). E is
// preserved, since the extruder axis has no endstop of its own unless one
// is configured (spec.md §9 — intentional, not a bug).
func (d *LinearDelta) HomePosition(current machine.Mechanical) machine.Mechanical {
	homeSteps := int64(math.Ceil((d.h + d.reach()) * d.stepsPerMMCarriage))
	out := current.Clone()
	out[0] = homeSteps
	out[1] = homeSteps
	out[2] = homeSteps
	return out
}

// XYZEFromMechanical solves the forward-kinematics trilateration, ported
// directly from original_source's lineardeltacoordmap.h to preserve its
// numerically-stable degenerate branches (spec.md §4.1/§4.1.1).
func (d *LinearDelta) XYZEFromMechanical(m machine.Mechanical) machine.XYZE {
	e := float64(m[3]) / d.stepsPerMMExt
	A := float64(m[0]) / d.stepsPerMMCarriage
	B := float64(m[1]) / d.stepsPerMMCarriage
	C := float64(m[2]) / d.stepsPerMMCarriage
	r := d.r
	l := d.l

	var x, y, z float64
	switch {
	case A == B && B == C:
		// All carriages level: effector sits directly above the tower
		// centroid. Avoids the 0/0 that the general formula hits here.
		x = 0
		y = 0
		z = A - math.Sqrt(l*l-r*r)
	case B == C:
		// Symmetric about the A tower: avoids dividing by (B-C).
		diff := A - B
		ydiv := 2 * (4*A*A - 8*A*B + 4*B*B + 9*r*r)
		ya := 2 * diff * diff * r
		ybInner := diff * diff * (-(diff * diff * diff * diff) + 4*diff*diff*l*l + 3*(-2*diff*diff+3*l*l)*r*r - 9*r*r*r*r)
		yb := 4 * math.Sqrt(math.Max(0, ybInner))
		com1 := math.Abs(yb / (diff * ydiv))
		com2 := ya / ydiv
		z = 0.5 * (A + B - 3*r*(com2/diff+com1))
		y = com2 + diff*com1
		x = 0
	default:
		za := (B - C) * r * (2*A*A*A - A*A*(B+C) - A*(B*B+C*C-3*r*r) + (B+C)*(2*B*B-3*B*C+2*C*C+3*r*r))
		inner := -((B - C) * (B - C) * r * r * ((A-B)*(A-B)*(A-C)*(A-C)*(B-C)*(B-C) +
			3*(A*A+B*B-B*C+C*C-A*(B+C))*(A*A+B*B-B*C+C*C-A*(B+C)-4*l*l)*r*r +
			9*(2*(A*A+B*B-B*C+C*C-A*(B+C))-3*l*l)*r*r*r*r +
			27*r*r*r*r*r*r))
		zb := math.Sqrt(3) * math.Sqrt(math.Max(0, inner))
		zdiv := (B - C) * r * (4*(A*A+B*B-B*C+C*C-A*(B+C)) + 9*r*r)

		z = za/zdiv - math.Abs(zb/zdiv)
		x = ((B - C) * (B + C - 2*z)) / (2 * math.Sqrt(3) * r)
		y = -((-2*A*A + B*B + C*C + 4*A*z - 2*B*z - 2*C*z) / (6 * r))
	}

	lx, ly, lz := d.leveling.Apply(x, y, z)
	return machine.XYZE{X: lx, Y: ly, Z: lz, E: e}
}

// Bound clamps z to the reachable vertical band and scales (x,y) radially
// onto the build plate if it falls outside the circular bed (spec.md §4.1).
func (d *LinearDelta) Bound(p machine.XYZE) machine.XYZE {
	maxZ := d.h + d.reach()
	p.Z = clamp(p.Z, d.zMin, maxZ)
	if d.buildRadius > 0 {
		if rad2 := p.X*p.X + p.Y*p.Y; rad2 > d.buildRadius*d.buildRadius {
			ratio := math.Sqrt(d.buildRadius * d.buildRadius / rad2)
			p.X *= ratio
			p.Y *= ratio
		}
	}
	return p
}
