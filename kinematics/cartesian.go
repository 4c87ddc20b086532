package kinematics

import (
	"fmt"
	"math"

	"printipi/machine"
	"printipi/stepgen"
)

// Cartesian implements CoordMap for a machine whose X, Y, Z, E mechanical
// axes map 1:1 onto Cartesian millimeters (spec.md §4.1).
type Cartesian struct {
	stepsPerMM [4]float64 // x, y, z, e
	minPos     [3]float64
	maxPos     [3]float64
}

// NewCartesian builds a Cartesian coordinate map from machine config.
func NewCartesian(cfg *machine.MachineConfig) (*Cartesian, error) {
	c := &Cartesian{}
	names := [4]string{"x", "y", "z", "e"}
	for i, name := range names {
		axis, ok := cfg.Axes[name]
		if !ok {
			return nil, fmt.Errorf("kinematics: cartesian requires axis %q in config", name)
		}
		if axis.StepsPerMM <= 0 {
			return nil, fmt.Errorf("kinematics: axis %q has non-positive steps_per_mm", name)
		}
		c.stepsPerMM[i] = axis.StepsPerMM
		if i < 3 {
			c.minPos[i] = axis.MinPosition
			c.maxPos[i] = axis.MaxPosition
		}
	}
	return c, nil
}

func (c *Cartesian) AxisNames() []string { return []string{"x", "y", "z", "e"} }

func (c *Cartesian) StepsPerMM(axis int) float64 { return c.stepsPerMM[axis] }

func (c *Cartesian) HomePosition(current machine.Mechanical) machine.Mechanical {
	out := current.Clone()
	for i := 0; i < 3; i++ {
		out[i] = 0
	}
	return out
}

func (c *Cartesian) XYZEFromMechanical(m machine.Mechanical) machine.XYZE {
	return machine.XYZE{
		X: float64(m[0]) / c.stepsPerMM[0],
		Y: float64(m[1]) / c.stepsPerMM[1],
		Z: float64(m[2]) / c.stepsPerMM[2],
		E: float64(m[3]) / c.stepsPerMM[3],
	}
}

// AxisSteppers builds a uniform-rate linear iterator per axis: under
// Cartesian kinematics every mechanical axis moves at constant velocity
// for the whole move.
func (c *Cartesian) AxisSteppers(start machine.XYZE, vel machine.Velocity, mechanical machine.Mechanical) []stepgen.AxisStepper {
	return []stepgen.AxisStepper{
		stepgen.NewLinearStepper(vel.X, c.stepsPerMM[0]),
		stepgen.NewLinearStepper(vel.Y, c.stepsPerMM[1]),
		stepgen.NewLinearStepper(vel.Z, c.stepsPerMM[2]),
		stepgen.NewLinearStepper(vel.E, c.stepsPerMM[3]),
	}
}

func (c *Cartesian) Bound(p machine.XYZE) machine.XYZE {
	p.X = clamp(p.X, c.minPos[0], c.maxPos[0])
	p.Y = clamp(p.Y, c.minPos[1], c.maxPos[1])
	p.Z = clamp(p.Z, c.minPos[2], c.maxPos[2])
	return p
}

func clamp(v, lo, hi float64) float64 {
	if lo == 0 && hi == 0 {
		return v // axis limits not configured: leave unconstrained
	}
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
