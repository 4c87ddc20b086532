package stepgen

import "testing"

type fakeEndstop struct {
	triggerAfter int
	calls        int
}

func (f *fakeEndstop) Triggered() bool {
	f.calls++
	return f.calls > f.triggerAfter
}

func TestHomingStepperNoEndstopExhaustedImmediately(t *testing.T) {
	s := NewHomingStepper(10, 80, Negative, nil)
	if _, _, ok := s.NextStep(); ok {
		t.Error("axis with no endstop should never produce a homing step")
	}
}

func TestHomingStepperStopsAtTrigger(t *testing.T) {
	ep := &fakeEndstop{triggerAfter: 3}
	s := NewHomingStepper(10, 80, Negative, ep)
	steps := 0
	for {
		_, dir, ok := s.NextStep()
		if !ok {
			break
		}
		if dir != Negative {
			t.Errorf("dir = %v, want Negative", dir)
		}
		steps++
		if steps > 10 {
			t.Fatal("homing stepper did not stop")
		}
	}
	if steps != 3 {
		t.Errorf("steps = %d, want 3", steps)
	}
}

func TestHomingStepperMonotonic(t *testing.T) {
	ep := &fakeEndstop{triggerAfter: 5}
	s := NewHomingStepper(5, 100, Positive, ep)
	last := 0.0
	for i := 0; i < 5; i++ {
		ti, _, ok := s.NextStep()
		if !ok {
			t.Fatalf("iteration %d: unexpected exhaustion", i)
		}
		if ti <= last {
			t.Fatalf("iteration %d: t %v not strictly greater than %v", i, ti, last)
		}
		last = ti
	}
}
