package planner

import (
	"testing"

	"printipi/kinematics"
	"printipi/machine"
	"printipi/stepgen"
)

func deltaConfig() *machine.MachineConfig {
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

// Scenario 3 (spec.md §8): linear-delta vertical lift steps all three
// carriages forward the same number of times, with times differing by at
// most a rounding quantum across carriages.
func TestScenario3DeltaVerticalLift(t *testing.T) {
	cm, err := kinematics.NewLinearDelta(deltaConfig())
	if err != nil {
		t.Fatalf("NewLinearDelta: %v", err)
	}
	pins := []uint32{0, 1, 2, 3}
	dirs := []stepgen.Direction{stepgen.Positive, stepgen.Positive, stepgen.Positive, stepgen.Negative}
	endstops := []stepgen.Endstop{nil, nil, nil, nil}

	start := cm.HomePosition(machine.Mechanical{0, 0, 0, 0})
	p := New(cm, pins, dirs, endstops, start, NoAccelFactory())

	if err := p.MoveTo(0, machine.XYZE{Z: 1}, 5, 0, 1000); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}

	counts := map[uint32]int{}
	for {
		ev, ok := p.NextStep()
		if !ok {
			break
		}
		counts[ev.Pin]++
	}

	if counts[0] == 0 {
		t.Fatal("expected carriage steps")
	}
	// Symmetric geometry means A, B, C should step the same number of
	// times; allow a one-step rounding tolerance per spec.md §8 ("times
	// differ by at most a rounding quantum across carriages").
	abs := func(x int) int {
		if x < 0 {
			return -x
		}
		return x
	}
	if abs(counts[0]-counts[1]) > 1 || abs(counts[1]-counts[2]) > 1 {
		t.Errorf("carriage step counts differ by more than one step: A=%d B=%d C=%d", counts[0], counts[1], counts[2])
	}
}

func TestDeltaHomePositionNoDivideByZero(t *testing.T) {
	cm, err := kinematics.NewLinearDelta(deltaConfig())
	if err != nil {
		t.Fatalf("NewLinearDelta: %v", err)
	}
	// A==B==C degenerate branch of forward kinematics.
	m := machine.Mechanical{29320, 29320, 29320, 0}
	xyze := cm.XYZEFromMechanical(m)
	if xyze.X != 0 || xyze.Y != 0 {
		t.Errorf("degenerate branch: x,y = %v,%v, want 0,0", xyze.X, xyze.Y)
	}
}
