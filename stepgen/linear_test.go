package stepgen

import "testing"

func TestLinearStepperRate(t *testing.T) {
	s := NewLinearStepper(10, 80) // 10mm/s, 80 steps/mm => 800 steps/s
	want := 1.0 / 800.0
	t0, dir, ok := s.NextStep()
	if !ok {
		t.Fatal("expected a step")
	}
	if dir != Positive {
		t.Errorf("dir = %v, want Positive", dir)
	}
	if diff := t0 - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("t0 = %v, want %v", t0, want)
	}
	t1, _, _ := s.NextStep()
	if diff := (t1 - t0) - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("interval = %v, want %v", t1-t0, want)
	}
}

func TestLinearStepperNegative(t *testing.T) {
	s := NewLinearStepper(-5, 100)
	_, dir, ok := s.NextStep()
	if !ok || dir != Negative {
		t.Errorf("got dir=%v ok=%v, want Negative,true", dir, ok)
	}
}

func TestLinearStepperZeroVelocityExhausted(t *testing.T) {
	s := NewLinearStepper(0, 100)
	if _, _, ok := s.NextStep(); ok {
		t.Error("zero velocity should never step")
	}
}

func TestLinearStepperMonotonic(t *testing.T) {
	s := NewLinearStepper(3, 40)
	last := 0.0
	for i := 0; i < 50; i++ {
		t1, _, ok := s.NextStep()
		if !ok {
			t.Fatalf("iteration %d: unexpected exhaustion", i)
		}
		if t1 <= last {
			t.Fatalf("iteration %d: t %v not strictly greater than previous %v", i, t1, last)
		}
		last = t1
	}
}
