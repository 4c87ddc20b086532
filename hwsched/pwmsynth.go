package hwsched

// SynthesizeDeltaSigma computes, for each of n ring frames, whether a pin
// should be set (true) or cleared (false) so that the pin's time-average
// level equals duty to within 1/n, with at most one low-to-high transition
// per idealPeriod seconds (spec.md §4.4.4).
//
// Ported from original_source's drv::rpi::HardwareScheduler::queuePwm delta-
// sigma loop; charge starts at 0 regardless of duty (spec.md §9 fixes this
// open question explicitly). frameRateHz is F, the ring's frames/second.
func SynthesizeDeltaSigma(n int, duty, idealPeriod, frameRateHz float64) []bool {
	minPeriod := idealPeriod * frameRateHz
	var charge, transitionCharge float64
	out := duty >= 0.5

	bits := make([]bool, n)
	for i := 0; i < n; i++ {
		charge += duty
		transitionCharge++
		if charge <= 0 {
			out = false
		} else if transitionCharge >= minPeriod {
			out = true
			transitionCharge -= minPeriod
		}
		if out {
			charge -= 1
		}
		bits[i] = out
	}
	return bits
}
