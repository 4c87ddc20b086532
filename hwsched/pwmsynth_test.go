package hwsched

import "testing"

// Scenario 5 (spec.md §8): queue_pwm(pin=5, duty=0.25, period=0) into a
// 1024-frame ring: exactly 256 frames set, the rest clear.
func TestSynthesizeDeltaSigmaScenario5(t *testing.T) {
	bits := SynthesizeDeltaSigma(1024, 0.25, 0, 1_000_000)
	set := 0
	for _, b := range bits {
		if b {
			set++
		}
	}
	if set != 256 {
		t.Errorf("set frames = %d, want 256", set)
	}
}

func TestSynthesizeDeltaSigmaDutyWithinOneOverN(t *testing.T) {
	cases := []float64{0, 0.1, 0.333, 0.5, 0.75, 1}
	const n = 2000
	for _, duty := range cases {
		bits := SynthesizeDeltaSigma(n, duty, 0, 1_000_000)
		set := 0
		for _, b := range bits {
			if b {
				set++
			}
		}
		got := float64(set) / n
		if diff := got - duty; diff > 1.0/n+1e-9 || diff < -1.0/n-1e-9 {
			t.Errorf("duty=%v: measured=%v, want within 1/n=%v", duty, got, 1.0/n)
		}
	}
}

func TestSynthesizeDeltaSigmaLowFrequencyPeriod(t *testing.T) {
	// With a long ideal period, transitions from low to high must be rare:
	// at most one low->high edge per minPeriod frames.
	const n = 1000
	const idealPeriod = 0.1 // seconds
	const frameRate = 1000.0
	bits := SynthesizeDeltaSigma(n, 0.3, idealPeriod, frameRate)
	minPeriod := int(idealPeriod * frameRate)
	lastRise := -minPeriod
	for i := 1; i < n; i++ {
		if bits[i] && !bits[i-1] {
			if i-lastRise < minPeriod {
				t.Errorf("rising edge at %d too soon after previous at %d (minPeriod=%d)", i, lastRise, minPeriod)
			}
			lastRise = i
		}
	}
}
