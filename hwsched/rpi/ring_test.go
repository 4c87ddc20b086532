package rpi

import "testing"

func TestFrameSetPinOrsBits(t *testing.T) {
	var f Frame
	f.SetPin(5, true)
	f.SetPin(37, true)
	f.SetPin(5, false) // setting a different polarity on the same pin still ORs in
	if f.GPSet[0] != 1<<5 {
		t.Errorf("GPSet[0] = %b, want bit 5", f.GPSet[0])
	}
	if f.GPSet[1] != 1<<5 {
		t.Errorf("GPSet[1] = %b, want bit 5 (pin 37)", f.GPSet[1])
	}
	if f.GPClr[0] != 1<<5 {
		t.Errorf("GPClr[0] = %b, want bit 5", f.GPClr[0])
	}
}

func TestFrameIsZero(t *testing.T) {
	var f Frame
	if !f.IsZero() {
		t.Error("zero-value frame should report IsZero")
	}
	f.SetPin(0, true)
	if f.IsZero() {
		t.Error("frame with a set bit should not report IsZero")
	}
}

func TestFrameIndexBasic(t *testing.T) {
	// t0=0, F=1_000_000 (1MHz), n=8192: event 5us after t0 lands in frame 5.
	idx := FrameIndex(5e-6, 0, 1_000_000, 8192)
	if idx != 5 {
		t.Errorf("idx = %d, want 5", idx)
	}
}

func TestFrameIndexWraps(t *testing.T) {
	idx := FrameIndex(8200e-6, 0, 1_000_000, 8192)
	if idx != 8 {
		t.Errorf("idx = %d, want 8 (8200 mod 8192)", idx)
	}
}

func TestFrameIndexNegativeBeforeT0(t *testing.T) {
	// An event slightly before t0 (e.g. due to clock jitter) must still
	// land in a valid, non-negative slot via floor+mod, not truncate
	// toward zero.
	idx := FrameIndex(-1e-6, 0, 1_000_000, 8192)
	if idx < 0 || idx >= 8192 {
		t.Errorf("idx = %d, want in [0,8192)", idx)
	}
}

func TestResyncT0(t *testing.T) {
	// Stride=100 at sampleTime=200us after epoch, F=1MHz: frame0 fired at
	// t=100us.
	t0 := ResyncT0(100, 200e-6, 1_000_000)
	want := 100e-6
	if diff := t0 - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("t0 = %v, want %v", t0, want)
	}
}

func TestDriftExceedsThreshold(t *testing.T) {
	ringPeriod := 8192.0 / 1_000_000 // 8.192ms
	if DriftExceeds(0, 0, ringPeriod, 20e-6) {
		t.Error("zero drift should not exceed threshold")
	}
	if !DriftExceeds(30e-6, 0, ringPeriod, 20e-6) {
		t.Error("30us drift should exceed a 20us threshold")
	}
	if DriftExceeds(10e-6, 0, ringPeriod, 20e-6) {
		t.Error("10us drift should not exceed a 20us threshold")
	}
}

func TestDriftExceedsWrapsAroundRingPeriod(t *testing.T) {
	ringPeriod := 8192.0 / 1_000_000
	// A drift of (ringPeriod - 5us) wraps to -5us, well under threshold.
	if DriftExceeds(ringPeriod-5e-6, 0, ringPeriod, 20e-6) {
		t.Error("drift near a full ring period should wrap to a small value")
	}
}
