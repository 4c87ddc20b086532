package tempctl

import (
	"testing"
	"time"
)

func TestPIDFirstFeedHasNoDerivativeKick(t *testing.T) {
	pid := New(1, 0, 1)
	now := time.Now()
	out := pid.Feed(200, 20, now)
	if out < 0 || out > 1 {
		t.Fatalf("first Feed produced out-of-range output %v", out)
	}
}

func TestPIDProportionalDominatesOnLargeError(t *testing.T) {
	pid := New(0.1, 0, 0)
	now := time.Now()
	pid.Feed(200, 20, now)
	out := pid.Feed(200, 20, now.Add(100*time.Millisecond))
	if out <= 0 {
		t.Fatalf("expected positive output for large positive error, got %v", out)
	}
}

func TestPIDAntiWindupUndoesOvershootingIntegral(t *testing.T) {
	pid := New(0, 10, 0)
	now := time.Now()
	pid.Feed(200, 20, now) // primes lastTime, no integration yet
	before := pid.errorI
	out := pid.Feed(200, 20, now.Add(time.Second))
	if out != 1 {
		t.Fatalf("expected saturated output of 1, got %v", out)
	}
	if pid.errorI != before {
		t.Errorf("anti-windup should undo the integral step that caused saturation: errorI = %v, want %v", pid.errorI, before)
	}
}

func TestPIDNoDerivativeKickOnSetpointChange(t *testing.T) {
	pid := New(0, 0, 5)
	now := time.Now()
	pid.Feed(20, 20, now)
	// Setpoint jumps but the process value hasn't moved: derivative-on-PV
	// should report zero kick.
	out := pid.Feed(200, 20, now.Add(100*time.Millisecond))
	if out != 0 {
		t.Errorf("derivative-on-process-value should ignore a setpoint jump with unchanged PV, got %v", out)
	}
}
