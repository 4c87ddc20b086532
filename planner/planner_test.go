package planner

import (
	"math"
	"testing"

	"printipi/kinematics"
	"printipi/machine"
	"printipi/stepgen"
)

func cartesianConfig() *machine.MachineConfig {
	return &machine.MachineConfig{
		Axes: map[string]machine.AxisConfig{
			"x": {StepsPerMM: 100},
			"y": {StepsPerMM: 100},
			"z": {StepsPerMM: 100},
			"e": {StepsPerMM: 100},
		},
	}
}

func newCartesianPlanner(t *testing.T, accel Factory) *Planner {
	t.Helper()
	cm, err := kinematics.NewCartesian(cartesianConfig())
	if err != nil {
		t.Fatalf("NewCartesian: %v", err)
	}
	pins := []uint32{0, 1, 2, 3}
	dirs := []stepgen.Direction{stepgen.Negative, stepgen.Negative, stepgen.Negative, stepgen.Negative}
	endstops := []stepgen.Endstop{nil, nil, nil, nil}
	return New(cm, pins, dirs, endstops, machine.Mechanical{0, 0, 0, 0}, accel)
}

// Scenario 1 (spec.md §8): unit Cartesian move, no acceleration.
func TestScenario1CartesianUnitMove(t *testing.T) {
	p := newCartesianPlanner(t, NoAccelFactory())
	if err := p.MoveTo(0, machine.XYZE{X: 1}, 10, 0, 1000); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}

	var events []OutputEvent
	for {
		ev, ok := p.NextStep()
		if !ok {
			break
		}
		events = append(events, ev)
	}

	if len(events) != 100 {
		t.Fatalf("got %d events, want 100", len(events))
	}
	for i, ev := range events {
		if ev.Pin != 0 {
			t.Errorf("event %d: pin = %d, want 0 (X axis)", i, ev.Pin)
		}
		if ev.Level != High {
			t.Errorf("event %d: level = %v, want High", i, ev.Level)
		}
		want := float64(i+1) * 0.001
		if diff := ev.TAbs - want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("event %d: t_abs = %v, want %v", i, ev.TAbs, want)
		}
	}
	if !p.ReadyForNextMove() {
		t.Error("expected planner to be idle after move exhausted")
	}
	if got := p.Mechanical(); got[0] != 100 || got[1] != 0 || got[2] != 0 || got[3] != 0 {
		t.Errorf("mechanical = %v, want {100,0,0,0}", got)
	}
}

// Scenario 2 (spec.md §8): constant-acceleration ramp, symmetric about the
// midpoint, never reaching vmax.
func TestScenario2ConstantAccelSymmetric(t *testing.T) {
	p := newCartesianPlanner(t, ConstantAccelFactory(100))
	if err := p.MoveTo(0, machine.XYZE{X: 1}, 10, 0, 1000); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}

	var events []OutputEvent
	for {
		ev, ok := p.NextStep()
		if !ok {
			break
		}
		events = append(events, ev)
	}
	if len(events) != 100 {
		t.Fatalf("got %d events, want 100", len(events))
	}
	// Events fall at k/100 of the nominal move for k=1..100, so event i
	// mirrors event 98-i about the midpoint (event 99 mirrors the start at
	// t=0): the time from the start to event i equals the time from its
	// mirror to the last event.
	last := events[len(events)-1].TAbs
	for i := 0; i < len(events)/2; i++ {
		mirror := len(events) - 2 - i
		sum := events[i].TAbs + events[mirror].TAbs
		if diff := sum - last; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("events %d/%d not symmetric about midpoint: sum=%v last=%v", i, mirror, sum, last)
		}
	}
	for i := 1; i < len(events); i++ {
		if events[i].TAbs <= events[i-1].TAbs {
			t.Fatalf("event %d not monotonic: %v <= %v", i, events[i].TAbs, events[i-1].TAbs)
		}
	}
}

func TestMoveToBusyWhileMoving(t *testing.T) {
	p := newCartesianPlanner(t, NoAccelFactory())
	if err := p.MoveTo(0, machine.XYZE{X: 1}, 10, 0, 1000); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	if err := p.MoveTo(0, machine.XYZE{X: 2}, 10, 0, 1000); err != ErrBusy {
		t.Errorf("MoveTo while busy = %v, want ErrBusy", err)
	}
}

// Boundary (spec.md §8): x=y=z=0, e>0 yields only extruder events.
func TestExtruderOnlyMove(t *testing.T) {
	p := newCartesianPlanner(t, NoAccelFactory())
	if err := p.MoveTo(0, machine.XYZE{E: 2}, 10, 0, 50); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	count := 0
	for {
		ev, ok := p.NextStep()
		if !ok {
			break
		}
		if ev.Pin != 3 {
			t.Fatalf("event on pin %d, want 3 (extruder)", ev.Pin)
		}
		count++
	}
	if count != 200 {
		t.Errorf("got %d extruder events, want 200", count)
	}
}

type fakeEndstopAt struct {
	triggerAfter int
	calls        int
}

func (f *fakeEndstopAt) Triggered() bool {
	f.calls++
	return f.calls > f.triggerAfter
}

// Scenario 4 (spec.md §8): homing stops after 37 pulses on X.
func TestScenario4Homing(t *testing.T) {
	cm, err := kinematics.NewCartesian(cartesianConfig())
	if err != nil {
		t.Fatalf("NewCartesian: %v", err)
	}
	pins := []uint32{0, 1, 2, 3}
	dirs := []stepgen.Direction{stepgen.Negative, stepgen.Negative, stepgen.Negative, stepgen.Negative}
	xEndstop := &fakeEndstopAt{triggerAfter: 37}
	endstops := []stepgen.Endstop{xEndstop, nil, nil, nil}
	p := New(cm, pins, dirs, endstops, machine.Mechanical{0, 0, 0, 0}, NoAccelFactory())

	if err := p.HomeEndstops(0, 1); err != nil {
		t.Fatalf("HomeEndstops: %v", err)
	}
	count := 0
	for {
		ev, ok := p.NextStep()
		if !ok {
			break
		}
		if ev.Pin != 0 {
			t.Fatalf("event on pin %d, want 0", ev.Pin)
		}
		count++
	}
	if count != 37 {
		t.Errorf("got %d events, want 37", count)
	}
	if !p.ReadyForNextMove() {
		t.Error("expected planner idle after homing")
	}
	if got := p.Mechanical(); got[0] != 0 {
		t.Errorf("mechanical[0] = %d, want 0 (home position)", got[0])
	}
}

func TestTieBreakAscendingAxisIndex(t *testing.T) {
	p := &Planner{axes: []axisSlot{
		{t: 5.0, dir: stepgen.Positive, ok: true},
		{t: 5.0, dir: stepgen.Positive, ok: true},
		{t: 3.0, dir: stepgen.Positive, ok: true},
	}}
	idx, found := p.selectNext()
	if !found || idx != 2 {
		t.Fatalf("selectNext = %d,%v, want 2,true", idx, found)
	}
}

func TestTieBreakIndexBeatsDirection(t *testing.T) {
	// Axis index is the sole tie-break key: a lower-index Positive wins
	// over a higher-index Negative at an exact t tie.
	p := &Planner{axes: []axisSlot{
		{t: 5.0, dir: stepgen.Positive, ok: true},
		{t: 5.0, dir: stepgen.Negative, ok: true},
	}}
	idx, found := p.selectNext()
	if !found || idx != 0 {
		t.Fatalf("selectNext = %d,%v, want 0,true (axis index, not direction, breaks the tie)", idx, found)
	}
}

func TestConstantAccelerationBoundary(t *testing.T) {
	p := NewConstantAcceleration(100, 1.0, 5.0)
	if got := p.Transform(0); got != 0 {
		t.Errorf("Transform(0) = %v, want 0", got)
	}
}

func TestConstantAccelerationHomingNeverDecelerates(t *testing.T) {
	p := NewConstantAcceleration(10, math.Inf(1), 1)
	// Far beyond any realistic homing move; must still land on the cruise
	// branch, never the (unreachable for infinite duration) decel branch.
	got := p.Transform(1e6)
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Errorf("Transform(1e6) = %v, want finite", got)
	}
}
