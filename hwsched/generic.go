package hwsched

import (
	"time"

	"printipi/core"
	"printipi/planner"
)

// GenericScheduler is the degenerate non-rpi fallback (spec.md §4.4.6): it
// performs a blocking digital write at event time with no DMA-grade timing
// guarantees, driven directly by the core.GPIODriver HAL — the same
// abstraction the teacher already uses for pin-at-a-time digital writes,
// invoked here once per OutputEvent instead of once per Klipper
// queue_digital_out command.
//
// It exists so the planner compiles and runs in tests and on hosts without
// a BCM283x DMA engine; it does not meet the timing contract the rpi
// backend does.
type GenericScheduler struct {
	gpio  core.GPIODriver
	now   func() time.Time
	sleep func(d time.Duration)

	pwm map[uint32]pwmCycle
}

type pwmCycle struct {
	duty        float64
	idealPeriod float64
}

// NewGenericScheduler builds a fallback scheduler driving pins through
// gpio directly.
func NewGenericScheduler(gpio core.GPIODriver) *GenericScheduler {
	return &GenericScheduler{
		gpio:  gpio,
		now:   time.Now,
		sleep: time.Sleep,
		pwm:   make(map[uint32]pwmCycle),
	}
}

// Queue blocks until ev.TAbs (interpreted as Unix time in seconds, on the
// same clock as time.Now) and then writes the pin; a time already past is
// written immediately.
func (s *GenericScheduler) Queue(ev planner.OutputEvent) error {
	target := time.Unix(0, int64(ev.TAbs*1e9))
	if d := target.Sub(s.now()); d > 0 {
		s.sleep(d)
	}
	return s.gpio.SetPin(core.GPIOPin(ev.Pin), ev.Level == planner.High)
}

// QueuePWM remembers the duty/period for pin; GenericScheduler has no ring
// to synthesize into, so it approximates PWM with a naive blocking
// square-wave cycle driven from RunSoftwarePWM, grounded on the teacher's
// cycle-time software PWM idea (core/gpio.go's queue_digital_out handler),
// generalized to call the shared delta-sigma generator one frame-
// equivalent at a time instead of a single fixed duty cycle.
func (s *GenericScheduler) QueuePWM(pin uint32, duty float64, idealPeriod float64) error {
	s.pwm[pin] = pwmCycle{duty: duty, idealPeriod: idealPeriod}
	return nil
}

// RunSoftwarePWM advances every registered pin's software PWM by one
// synthetic ring lap of n frames at the given frame rate, writing each
// frame's level through the GPIO driver. Intended to be called from a
// caller's idle loop on generic (non-DMA) platforms.
func (s *GenericScheduler) RunSoftwarePWM(n int, frameRateHz float64) error {
	frameDur := time.Duration(1e9/frameRateHz) * time.Nanosecond
	for pin, cyc := range s.pwm {
		bits := SynthesizeDeltaSigma(n, cyc.duty, cyc.idealPeriod, frameRateHz)
		for _, b := range bits {
			if err := s.gpio.SetPin(core.GPIOPin(pin), b); err != nil {
				return err
			}
			s.sleep(frameDur)
		}
	}
	return nil
}

// OnIdleCpu never needs to resync a wall-clock-driven fallback; it always
// reports it has no further work.
func (s *GenericScheduler) OnIdleCpu(interval IdleInterval) bool {
	return false
}
