package kinematics

import (
	"math"
	"testing"

	"printipi/machine"
)

func testDeltaConfig() *machine.MachineConfig {
	return &machine.MachineConfig{
		Delta: machine.DeltaParams{
			TowerRadius: 100,
			RodLength:   200,
			HomeHeight:  250,
		},
		Axes: map[string]machine.AxisConfig{
			"a": {StepsPerMM: 100},
			"e": {StepsPerMM: 100},
		},
	}
}

// carriageHeight solves the single-tower trilateration equation directly:
// (x-tx)^2 + (y-ty)^2 + (z-ch)^2 = l^2, carriage above the effector.
func carriageHeight(tx, ty, x, y, z, l float64) float64 {
	dx, dy := x-tx, y-ty
	return z + math.Sqrt(l*l-dx*dx-dy*dy)
}

// TestXYZEFromMechanicalRoundTripNonAxial exercises a target with x != 0,
// which the all-carriages-equal and B==C branches never do: it would have
// caught towerPositions() building the mirrored-in-x tower layout that
// disagreed with XYZEFromMechanical's tower convention.
func TestXYZEFromMechanicalRoundTripNonAxial(t *testing.T) {
	d, err := NewLinearDelta(testDeltaConfig())
	if err != nil {
		t.Fatalf("NewLinearDelta: %v", err)
	}

	want := machine.XYZE{X: 15, Y: -8, Z: 40}
	towers := d.towerPositions()
	m := make(machine.Mechanical, 4)
	for i, tw := range towers {
		ch := carriageHeight(tw[0], tw[1], want.X, want.Y, want.Z, d.l)
		m[i] = int64(math.Round(ch * d.stepsPerMMCarriage))
	}

	got := d.XYZEFromMechanical(m)
	const tol = 0.05 // rounding to whole steps
	if math.Abs(got.X-want.X) > tol || math.Abs(got.Y-want.Y) > tol || math.Abs(got.Z-want.Z) > tol {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}
