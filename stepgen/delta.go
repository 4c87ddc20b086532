package stepgen

import "math"

// DeltaCarriageStepper iterates one linear-delta carriage axis (A, B, or C)
// during a move defined by a constant Cartesian velocity vector. Unlike a
// Cartesian axis, a carriage's step rate is not constant even though the
// effector moves at constant velocity: the carriage-to-effector geometry
// means each step corresponds to a different, decreasing time interval as
// the arm angle changes. NextStep finds that interval by solving, at each
// call, the quadratic equation that locates the next whole-step crossing
// of the carriage's vertical rail.
//
// Grounded on original_source's src/drivers/lineardeltastepper.h: the
// "nextStep solves for the next time that moves the carriage by one full
// step in either direction, and returns whichever comes first" algorithm,
// adapted to Go's explicit-everything style (no mutable member search
// state beyond what NextStep itself owns).
type DeltaCarriageStepper struct {
	// precomputed, constant for the whole move
	a          float64 // vx^2 + vy^2 + vz^2
	vx, vy, vz float64
	dx0, dy0   float64 // (x0 - towerX), (y0 - towerY)
	dz0const   float64 // D0 - z0, where D0 is the carriage height at t=0
	l2         float64 // L^2
	stepsPerMM float64

	sTotal int64 // integer steps taken since t=0, may go negative
	t      float64
	done   bool
}

// NewDeltaCarriageStepper builds an iterator for one carriage given the
// move's Cartesian start position and velocity, the tower's (x,y) position,
// the arm length L, the carriage's steps/mm, and the carriage's starting
// mechanical step count (converted internally to a starting height).
func NewDeltaCarriageStepper(x0, y0, z0, vx, vy, vz float64, towerX, towerY, armLength, stepsPerMM float64, startSteps int64) *DeltaCarriageStepper {
	d0 := float64(startSteps) / stepsPerMM
	return &DeltaCarriageStepper{
		a:          vx*vx + vy*vy + vz*vz,
		vx:         vx,
		vy:         vy,
		vz:         vz,
		dx0:        x0 - towerX,
		dy0:        y0 - towerY,
		dz0const:   d0 - z0,
		l2:         armLength * armLength,
		stepsPerMM: stepsPerMM,
	}
}

// candidate returns the smallest root t of the quadratic equation that
// places the carriage exactly s steps away from its start, strictly
// greater than after, or ok=false if no such root exists.
func (d *DeltaCarriageStepper) candidate(s int64, after float64) (t float64, ok bool) {
	sMM := float64(s) / d.stepsPerMM
	dz0 := d.dz0const + sMM

	b := 2 * (d.dx0*d.vx + d.dy0*d.vy - dz0*d.vz)
	c := d.dx0*d.dx0 + d.dy0*d.dy0 + dz0*dz0 - d.l2

	if d.a == 0 {
		if b == 0 {
			return 0, false
		}
		t = -c / b
		if t > after {
			return t, true
		}
		return 0, false
	}

	disc := b*b - 4*d.a*c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t1 := (-b - sq) / (2 * d.a)
	t2 := (-b + sq) / (2 * d.a)
	if t1 > t2 {
		t1, t2 = t2, t1
	}
	if t1 > after {
		return t1, true
	}
	if t2 > after {
		return t2, true
	}
	return 0, false
}

func (d *DeltaCarriageStepper) NextStep() (float64, Direction, bool) {
	if d.done {
		return 0, 0, false
	}
	tFwd, okFwd := d.candidate(d.sTotal+1, d.t)
	tBack, okBack := d.candidate(d.sTotal-1, d.t)

	switch {
	case okFwd && okBack:
		if tFwd <= tBack {
			d.sTotal++
			d.t = tFwd
			return d.t, Positive, true
		}
		d.sTotal--
		d.t = tBack
		return d.t, Negative, true
	case okFwd:
		d.sTotal++
		d.t = tFwd
		return d.t, Positive, true
	case okBack:
		d.sTotal--
		d.t = tBack
		return d.t, Negative, true
	default:
		d.done = true
		return 0, 0, false
	}
}
