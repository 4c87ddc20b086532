// Command printipi-host is the process entry point: it loads a machine
// configuration, wires together the coordinate mapper, motion planner,
// hardware scheduler, temperature control loop, and stepper-driver SPI
// configuration, then runs a G-code console against the result.
//
// Grounded on the teacher's host/cmd/gopper-host/main.go: a flag-parsed
// CLI that connects to hardware, reports what it found, then drops into an
// interactive loop — generalized from a Klipper MCU's dictionary/command
// transport to this port's own config/planner/scheduler/gcode stack.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"printipi/config"
	"printipi/core"
	"printipi/gcode"
	"printipi/hwsched"
	"printipi/hwsched/rpi"
	"printipi/kinematics"
	"printipi/machine"
	"printipi/planner"
	"printipi/stepgen"
	"printipi/tempctl"
	"printipi/tmcdriver"
)

var (
	configPath = flag.String("config", "", "path to a machine config JSON file (default: built-in Cartesian example)")
	device     = flag.String("device", "", "console device, e.g. /dev/ttyACM0 (default: stdin/stdout)")
	generic    = flag.Bool("generic", false, "use the blocking fallback scheduler instead of the BCM283x DMA engine")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("printipi-host: %v", err)
	}

	core.SetDebugWriter(func(s string) { log.Println(s) })
	core.SetDebugEnabled(true)

	coordMap, err := buildCoordMap(cfg)
	if err != nil {
		log.Fatalf("printipi-host: %v", err)
	}

	gpioDriver, err := rpi.NewGPIODriver()
	if err != nil {
		log.Fatalf("printipi-host: gpio: %v", err)
	}
	core.SetGPIODriver(gpioDriver)

	sched, closeSched, err := buildScheduler(cfg, *generic)
	if err != nil {
		log.Fatalf("printipi-host: scheduler: %v", err)
	}
	defer closeSched()

	if err := configureStepperDrivers(cfg); err != nil {
		// Current/microstepping configuration is a nicety, not required
		// for step/dir motion to work, so a failure here is logged and
		// the driver falls back to its chip's power-on defaults.
		log.Printf("printipi-host: stepper driver config: %v", err)
	}

	pins, err := resolveStepPins(coordMap, cfg)
	if err != nil {
		log.Fatalf("printipi-host: %v", err)
	}

	endstops, homeDirs, err := buildEndstops(coordMap, cfg)
	if err != nil {
		log.Fatalf("printipi-host: %v", err)
	}

	start := make(machine.Mechanical, len(coordMap.AxisNames()))
	accelFactory := planner.ConstantAccelFactory(cfg.DefaultAccel)
	p := planner.New(coordMap, pins, homeDirs, endstops, start, accelFactory)

	var temp gcode.TempController
	if len(cfg.Heaters) > 0 {
		loop := tempctl.NewLoop(sched, cfg.Heaters)
		defer loop.Close()
		temp = loop
	}

	now := monotonicSeconds()
	interp := gcode.NewInterpreter(p, sched, coordMap, cfg, temp, now)
	reg := gcode.NewRegistry()

	console, closeConsole, err := buildConsole(*device, interp, reg)
	if err != nil {
		log.Fatalf("printipi-host: console: %v", err)
	}
	defer closeConsole()

	handleSignals(closeSched, closeConsole)

	fmt.Println("printipi-host ready")
	if err := console.Run(); err != nil {
		log.Fatalf("printipi-host: console: %v", err)
	}
}

func loadConfig(path string) (*machine.MachineConfig, error) {
	if path == "" {
		return config.DefaultCartesianConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return config.LoadConfig(data)
}

func buildCoordMap(cfg *machine.MachineConfig) (kinematics.CoordMap, error) {
	switch cfg.Kinematics {
	case "", "cartesian":
		return kinematics.NewCartesian(cfg)
	case "linear_delta":
		return kinematics.NewLinearDelta(cfg)
	default:
		return nil, fmt.Errorf("unknown kinematics %q", cfg.Kinematics)
	}
}

func buildScheduler(cfg *machine.MachineConfig, useGeneric bool) (hwsched.Scheduler, func(), error) {
	if useGeneric {
		s := hwsched.NewGenericScheduler(core.MustGPIO())
		return s, func() {}, nil
	}

	rcfg := rpi.DefaultConfig()
	if cfg.Scheduler.RingSize > 0 {
		rcfg.RingSize = cfg.Scheduler.RingSize
	}
	if cfg.Scheduler.FrameRateHz > 0 {
		rcfg.FrameRateHz = cfg.Scheduler.FrameRateHz
	}
	if cfg.Scheduler.MaxSchedAheadUsec > 0 {
		rcfg.MaxSchedAhead = time.Duration(cfg.Scheduler.MaxSchedAheadUsec * float64(time.Microsecond))
	}
	if cfg.Scheduler.MinSchedAheadUsec > 0 {
		rcfg.MinSchedAhead = time.Duration(cfg.Scheduler.MinSchedAheadUsec * float64(time.Microsecond))
	}

	s, err := rpi.NewScheduler(rcfg, monotonicSeconds())
	if err != nil {
		return nil, nil, fmt.Errorf("rpi scheduler: %w", err)
	}
	return s, func() { s.Close() }, nil
}

// configureStepperDrivers writes current/microstepping registers for every
// axis with a Steppers entry in cfg. Axes without an entry are assumed to
// be plain step/dir drivers needing no SPI setup.
func configureStepperDrivers(cfg *machine.MachineConfig) error {
	if len(cfg.Steppers) == 0 {
		return nil
	}
	spiDriver, err := rpi.NewSPIDriver()
	if err != nil {
		return fmt.Errorf("spi: %w", err)
	}
	core.SetSPIDriver(spiDriver)

	var firstErr error
	for axis, sc := range cfg.Steppers {
		drv, err := tmcdriver.Open(tmcdriver.Config{
			Bus:         core.SPIBusID(sc.SPIBus),
			Rate:        sc.SPIRateHz,
			RunCurrent:  sc.RunCurrent,
			HoldCurrent: sc.HoldCurrent,
			HoldDelay:   sc.HoldDelay,
			Microsteps:  sc.Microsteps,
			StealthChop: sc.StealthChop,
		})
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("axis %q: %w", axis, err)
			}
			continue
		}
		if err := drv.Configure(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("axis %q: configure: %w", axis, err)
		}
	}
	return firstErr
}

func resolveStepPins(coordMap kinematics.CoordMap, cfg *machine.MachineConfig) ([]uint32, error) {
	names := coordMap.AxisNames()
	pins := make([]uint32, len(names))
	for i, name := range names {
		axis, ok := cfg.Axes[name]
		if !ok {
			return nil, fmt.Errorf("config missing axis %q", name)
		}
		pin, err := config.ParseGPIOPin(axis.StepPin)
		if err != nil {
			return nil, fmt.Errorf("axis %q step pin: %w", name, err)
		}
		pins[i] = pin
		if err := core.MustGPIO().ConfigureOutput(core.GPIOPin(pin)); err != nil {
			return nil, fmt.Errorf("axis %q step pin: %w", name, err)
		}
	}
	return pins, nil
}

// buildEndstops constructs one core.Endstop per mechanical axis that has a
// configured EndstopConfig, sharing a single TriggerSync so a trigger on
// any axis can, in principle, signal every sibling mid-home (spec.md's
// multi-axis homing trigger sync).
func buildEndstops(coordMap kinematics.CoordMap, cfg *machine.MachineConfig) ([]stepgen.Endstop, []stepgen.Direction, error) {
	names := coordMap.AxisNames()
	endstops := make([]stepgen.Endstop, len(names))
	homeDirs := make([]stepgen.Direction, len(names))
	sync := core.NewTriggerSync(trsyncExpireHoming)

	for i, name := range names {
		homeDirs[i] = stepgen.Negative
		ec, ok := cfg.Endstops[name]
		if !ok {
			continue
		}
		pin, err := config.ParseGPIOPin(ec.Pin)
		if err != nil {
			return nil, nil, fmt.Errorf("endstop %q: %w", name, err)
		}
		es, err := core.NewEndstop(core.GPIOPin(pin), true, !ec.Invert, core.TimerFromUS(endstopSampleUS), endstopSampleCount)
		if err != nil {
			return nil, nil, fmt.Errorf("endstop %q: %w", name, err)
		}
		endstops[i] = &rearmingEndstop{es: es, sync: sync}
	}
	return endstops, homeDirs, nil
}

const (
	endstopSampleUS    = 500 // microseconds between oversample ticks
	endstopSampleCount = 3   // consecutive matching samples required to confirm
	trsyncExpireHoming = 1   // expire reason: homing move timed out
)

// rearmingEndstop adapts a core.Endstop to stepgen.Endstop, self-arming on
// first poll and re-arming immediately after it reports a trigger so the
// same endstop is ready for the next G28 without a caller needing to
// manage Arm/Disarm around each homing move.
type rearmingEndstop struct {
	es   *core.Endstop
	sync *core.TriggerSync
}

func (r *rearmingEndstop) Triggered() bool {
	if r.es.Triggered() {
		r.es.Arm(r.sync, 0) // consume the trigger, ready for the next home
		return true
	}
	if r.es.Flags&core.ESF_ARMED == 0 {
		r.es.Arm(r.sync, 0)
	}
	return false
}

func buildConsole(device string, interp *gcode.Interpreter, reg *gcode.Registry) (*gcode.Console, func(), error) {
	if device == "" {
		c := gcode.NewConsole(os.Stdin, os.Stdout, interp, reg)
		return c, func() {}, nil
	}
	c, err := gcode.OpenSerialConsole(device, interp, reg)
	if err != nil {
		return nil, nil, err
	}
	return c, func() {}, nil
}

func monotonicSeconds() func() float64 {
	core.TimerInit()
	return func() float64 {
		return float64(core.GetTime()) / float64(core.TimerFreq)
	}
}

func handleSignals(closers ...func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	var once int32
	go func() {
		<-ch
		if atomic.CompareAndSwapInt32(&once, 0, 1) {
			core.TryShutdown("signal received")
			for _, c := range closers {
				c()
			}
			os.Exit(0)
		}
	}()
}
