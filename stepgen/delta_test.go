package stepgen

import (
	"math"
	"testing"
)

func TestDeltaCarriageStepperStationaryExhausted(t *testing.T) {
	s := NewDeltaCarriageStepper(0, 0, 0, 0, 0, 0, 0, 100, 200, 100, 17320)
	if _, _, ok := s.NextStep(); ok {
		t.Error("zero velocity vector should never step")
	}
}

func TestDeltaCarriageStepperMonotonic(t *testing.T) {
	// Tower at (0,100), arm length 200, start position roughly satisfying
	// the sphere constraint with dx0=0, dy0=-100.
	d0 := math.Sqrt(200*200-100*100) / 100 // steps/mm = 100
	startSteps := int64(d0 * 100)

	s := NewDeltaCarriageStepper(0, 0, 0, 0, 0, 10, 0, 100, 200, 100, startSteps)
	last := 0.0
	count := 0
	for i := 0; i < 200; i++ {
		ti, _, ok := s.NextStep()
		if !ok {
			break
		}
		if ti <= last {
			t.Fatalf("iteration %d: t %v not strictly greater than previous %v", i, ti, last)
		}
		if math.IsNaN(ti) {
			t.Fatalf("iteration %d: got NaN time", i)
		}
		last = ti
		count++
	}
	if count == 0 {
		t.Fatal("expected at least one step for a moving carriage")
	}
}
