package tempctl

import (
	"fmt"
	"time"

	"printipi/config"
	"printipi/core"
	"printipi/hwsched"
	"printipi/machine"
)

// readInterval and maxRead mirror original_source's TempControl constants:
// a new thermistor read starts every readInterval, and a read that hasn't
// completed within maxRead is abandoned as a sensor fault.
const (
	readInterval = 3 * time.Second
	maxRead      = 1 * time.Second
	pwmPeriod    = 1.0 / 25000
)

// heater is one controlled heater's full control loop state: PID,
// thermistor conversion, and the GPIO pin the scheduler drives.
//
// Adapted from original_source's iodrivers/tempcontrol.h TempControl: the
// same read/settle/updatePwm cadence, with the RC-timing read replaced by
// an ADC HAL sample (see thermistor.go) and onIdleCpu's cooperative
// polling replaced by a timer task registered with the adapted
// core.Timer scheduler (core/timer.go, core/scheduler.go), since this
// port runs as an ordinary Go process rather than a bare-metal loop.
type heater struct {
	name    string
	sensor  uint32 // ADC pin
	pin     uint32 // GPIO pin the scheduler drives
	maxPower float64
	minTemp, maxTemp float64

	therm Thermistor
	pid   *PID
	sched hwsched.Scheduler

	target    float64
	lastTemp  float64
	haveTemp  bool

	readStart   time.Time
	reading     bool
}

// Loop owns every configured heater's control state and drains scheduled
// reads through core.Timer (spec.md §6's TempController collaborator).
//
// Satisfies gcode.TempController.
type Loop struct {
	sched   hwsched.Scheduler
	heaters map[string]*heater
	stop    chan struct{}
}

// NewLoop builds a Loop for the heaters named in cfg.Heaters (machine.HeaterConfig
// keyed by name, e.g. "extruder"/"bed") and starts its background timer
// loop driving reads and PID updates.
func NewLoop(sched hwsched.Scheduler, cfg map[string]machine.HeaterConfig) *Loop {
	l := &Loop{sched: sched, heaters: make(map[string]*heater), stop: make(chan struct{})}
	for name, hc := range cfg {
		sensor, err := config.ParseADCPin(hc.SensorPin)
		if err != nil {
			core.Errorf("tempctl: skipping heater %q: %v", name, err)
			continue
		}
		pin, err := config.ParseGPIOPin(hc.HeaterPin)
		if err != nil {
			core.Errorf("tempctl: skipping heater %q: %v", name, err)
			continue
		}
		h := &heater{
			name:     name,
			sensor:   sensor,
			pin:      pin,
			maxPower: hc.MaxPower,
			minTemp:  hc.MinTemp,
			maxTemp:  hc.MaxTemp,
			therm:    DefaultThermistor(),
			pid:      New(hc.PID[0], hc.PID[1], hc.PID[2]),
			sched:    sched,
			target:   -300, // unreachable sentinel, matches original's _destTemp(-300)
		}
		if err := core.ADCSetup(h.sensor); err == nil {
			l.heaters[name] = h
		}
	}
	core.TimerInit()
	go core.RunTimerLoop(10*time.Millisecond, l.stop)
	for _, h := range l.heaters {
		h.scheduleNextRead()
	}
	return l
}

// Close stops the background timer loop.
func (l *Loop) Close() { close(l.stop) }

// SetTarget implements gcode.TempController.
func (l *Loop) SetTarget(name string, celsius float64) error {
	h, ok := l.heaters[name]
	if !ok {
		return fmt.Errorf("no heater named %q", name)
	}
	if celsius > h.maxTemp {
		return fmt.Errorf("target %.1fC exceeds heater %q max %.1fC", celsius, name, h.maxTemp)
	}
	h.target = celsius
	return nil
}

// Measured implements gcode.TempController.
func (l *Loop) Measured(name string) (float64, bool) {
	h, ok := l.heaters[name]
	if !ok || !h.haveTemp {
		return 0, false
	}
	return h.lastTemp, true
}

// scheduleNextRead arms a timer task that starts an ADC conversion and
// polls it to completion, the host-loop analogue of onIdleCpu's
// isReading state machine.
func (h *heater) scheduleNextRead() {
	h.readStart = time.Now()
	h.reading = true
	core.ADCCancel(h.sensor)

	var t core.Timer
	t.WakeTime = core.GetTime() + core.TimerFromUS(uint32(2*time.Millisecond.Microseconds()))
	t.Handler = h.pollRead
	core.ScheduleTimer(&t)
}

func (h *heater) pollRead(t *core.Timer) uint8 {
	value, ready := core.ADCSample(h.sensor)
	if !ready {
		if time.Since(h.readStart) > maxRead {
			core.Errorf("tempctl: %s thermistor read timed out", h.name)
			h.reading = false
			go h.waitThenReschedule()
			return core.SF_DONE
		}
		t.WakeTime += core.TimerFromUS(500)
		return core.SF_RESCHEDULE
	}

	h.lastTemp = h.therm.Temperature(value)
	h.haveTemp = true
	h.reading = false
	h.updatePWM()
	go h.waitThenReschedule()
	return core.SF_DONE
}

func (h *heater) waitThenReschedule() {
	time.Sleep(readInterval)
	h.scheduleNextRead()
}

func (h *heater) updatePWM() {
	duty := h.pid.Feed(h.target, h.lastTemp, time.Now())
	if h.lastTemp >= h.maxTemp {
		duty = 0
		core.Errorf("tempctl: %s over max temp (%.1fC >= %.1fC), forcing off", h.name, h.lastTemp, h.maxTemp)
	}
	clamped := duty * h.maxPower
	if h.sched != nil {
		if err := h.sched.QueuePWM(h.pin, clamped, pwmPeriod); err != nil {
			core.Errorf("tempctl: %s QueuePWM: %v", h.name, err)
		}
	}
}
