// Package rpi implements the DMA-paced BCM283x hardware scheduler (spec.md
// §4.4.1-§4.4.5): a ring of GPIO frames cycled forever by a chain of DMA
// control blocks, paced through the PWM peripheral's DREQ signal so the
// whole chain advances at exactly F frames per second.
//
// Grounded on original_source's src/drivers/rpi/hardwarescheduler.cpp/h
// (the only place those files are used — they are the reference
// implementation this backend is translated from) and mitpi.cpp/h for the
// peripheral register layouts, combined with the teacher's HAL-interface
// style (core/gpio_hal.go).
package rpi

// Frame is one ring slot: the set/clear masks applied to GPIO words 0 and
// 1 (pins 0-31 and 32-63) when this frame is consumed by the DMA engine.
// Mirrors original_source's GpioBufferFrame.
type Frame struct {
	GPSet [2]uint32
	GPClr [2]uint32
}

// SetPin ORs pin's bit into this frame's set or clear mask (spec.md §4.4.3
// step 3: "the OR is essential, multiple pulses at the same frame from
// different pins must coexist").
func (f *Frame) SetPin(pin uint32, high bool) {
	word := pin / 32
	bit := uint32(1) << (pin % 32)
	if high {
		f.GPSet[word] |= bit
	} else {
		f.GPClr[word] |= bit
	}
}

// IsZero reports whether the frame has been reset to all zeros, the state
// a clear-CB should leave it in one lap after consumption (spec.md §8's
// frame-ring invariant).
func (f Frame) IsZero() bool {
	return f.GPSet[0] == 0 && f.GPSet[1] == 0 && f.GPClr[0] == 0 && f.GPClr[1] == 0
}

// FrameIndex computes the ring slot a pin transition at absolute time t
// belongs in, given t0 (the absolute time frame 0 of the current lap
// fires), the ring's frame rate F, and its size n (spec.md §4.4.2):
// idx = floor((t-t0)*F) mod n.
func FrameIndex(t, t0, frameRateHz float64, n int) int {
	usecFromT0 := (t - t0) * frameRateHz
	idx := int(usecFromT0)
	if float64(idx) > usecFromT0 {
		idx-- // floor, not truncation, for negative inputs
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}

// ResyncT0 recomputes t0 from a sampled (stride, sampleTime) pair: the
// currently executing pacing CB's STRIDE register holds the ring index i
// that is executing at sampleTime (spec.md §4.4.2 step 2).
func ResyncT0(strideIdx int, sampleTime, frameRateHz float64) float64 {
	return sampleTime - float64(strideIdx)/frameRateHz
}

// DriftExceeds reports whether the difference between a freshly measured
// t0 and the previous one, wrapped to the ring's period N/F, exceeds the
// frame-granularity warning threshold (spec.md §4.4.2 step 3: >20us
// indicates the producer is not keeping up).
func DriftExceeds(t0, prevT0, ringPeriod, thresholdSeconds float64) bool {
	diff := mod(t0-prevT0, ringPeriod)
	if diff > ringPeriod/2 {
		diff -= ringPeriod
	}
	if diff < 0 {
		diff = -diff
	}
	return diff > thresholdSeconds
}

func mod(a, m float64) float64 {
	r := a - m*float64(int(a/m))
	if r < 0 {
		r += m
	}
	return r
}
