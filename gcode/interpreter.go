package gcode

import (
	"fmt"

	"printipi/hwsched"
	"printipi/kinematics"
	"printipi/machine"
	"printipi/planner"
)

// TempController is the interpreter's view of the external temperature
// collaborator (spec.md §1 names PID + RC-thermistor control as out of
// core scope; tempctl.Loop implements this).
type TempController interface {
	SetTarget(heater string, celsius float64) error
	Measured(heater string) (celsius float64, ok bool)
}

// state is the interpreter's mutable G-code mode, mirroring the teacher's
// standalone MachineState but carrying only what this port's interpreter
// needs.
type state struct {
	absolutePosition bool
	absoluteExtrude  bool
	feedRate         float64 // mm/s
	homed            map[string]bool
	targetTemp       map[string]float64
}

// Interpreter executes parsed G-code commands against a motion planner, a
// hardware scheduler, and (optionally) a temperature controller. It is the
// thin caller spec.md §1/§6 assumes exists above the core: it owns no
// timing guarantees itself, it only decides what to ask the planner and
// scheduler to do.
//
// Grounded on the teacher's standalone/gcode interpreter shape, repointed
// at this module's own planner.Planner/hwsched.Scheduler instead of
// gopper/standalone's QueueMove/SetPosition abstraction.
type Interpreter struct {
	planner   *planner.Planner
	scheduler hwsched.Scheduler
	coordMap  kinematics.CoordMap
	config    *machine.MachineConfig
	temp      TempController
	now       func() float64

	st state
}

// NewInterpreter builds an interpreter driving p and sched for a machine
// described by coordMap/config. temp may be nil if no heaters are
// configured. now returns the current absolute time in the same units as
// OutputEvent.TAbs (seconds); pass a real monotonic-clock reader in
// production and a fake one in tests.
func NewInterpreter(p *planner.Planner, sched hwsched.Scheduler, coordMap kinematics.CoordMap, config *machine.MachineConfig, temp TempController, now func() float64) *Interpreter {
	return &Interpreter{
		planner:   p,
		scheduler: sched,
		coordMap:  coordMap,
		config:    config,
		temp:      temp,
		now:       now,
		st: state{
			absolutePosition: true,
			absoluteExtrude:  true,
			feedRate:         config.DefaultVelocity,
			homed:            make(map[string]bool),
			targetTemp:       make(map[string]float64),
		},
	}
}

// Execute runs one parsed command. Comment-only and blank lines are no-ops.
func (interp *Interpreter) Execute(cmd *Command) error {
	if cmd == nil || cmd.Type == 0 {
		return nil
	}
	switch cmd.Type {
	case 'G':
		return interp.executeG(cmd)
	case 'M':
		return interp.executeM(cmd)
	case 'T':
		return nil // tool changes: single-extruder machines have nothing to do
	}
	return nil
}

func (interp *Interpreter) executeG(cmd *Command) error {
	switch cmd.Number {
	case 0, 1:
		return interp.doMove(cmd)
	case 28:
		return interp.doHome(cmd)
	case 90:
		interp.st.absolutePosition = true
	case 91:
		interp.st.absolutePosition = false
	case 92:
		return interp.doSetPosition(cmd)
	}
	return nil
}

func (interp *Interpreter) executeM(cmd *Command) error {
	switch cmd.Number {
	case 82:
		interp.st.absoluteExtrude = true
	case 83:
		interp.st.absoluteExtrude = false
	case 104, 109:
		if cmd.HasParameter('S') && interp.temp != nil {
			temp := cmd.GetParameter('S', 0)
			interp.st.targetTemp["extruder"] = temp
			return interp.temp.SetTarget("extruder", temp)
		}
	case 140, 190:
		if cmd.HasParameter('S') && interp.temp != nil {
			temp := cmd.GetParameter('S', 0)
			interp.st.targetTemp["bed"] = temp
			return interp.temp.SetTarget("bed", temp)
		}
	}
	return nil
}

// doMove executes G0/G1: builds target XYZE from the current mechanical
// position and dispatches planner.MoveTo, then drains every OutputEvent
// into the hardware scheduler — the exact control-flow loop spec.md §2
// describes ("calls planner.moveTo(...) then repeatedly next_step(),
// handing each event to queue()").
func (interp *Interpreter) doMove(cmd *Command) error {
	current := interp.coordMap.XYZEFromMechanical(interp.planner.Mechanical())
	target := current

	if cmd.HasParameter('F') {
		interp.st.feedRate = cmd.GetParameter('F', 0) / 60.0 // mm/min -> mm/s
	}

	if interp.st.absolutePosition {
		if cmd.HasParameter('X') {
			target.X = cmd.GetParameter('X', current.X)
		}
		if cmd.HasParameter('Y') {
			target.Y = cmd.GetParameter('Y', current.Y)
		}
		if cmd.HasParameter('Z') {
			target.Z = cmd.GetParameter('Z', current.Z)
		}
	} else {
		if cmd.HasParameter('X') {
			target.X = current.X + cmd.GetParameter('X', 0)
		}
		if cmd.HasParameter('Y') {
			target.Y = current.Y + cmd.GetParameter('Y', 0)
		}
		if cmd.HasParameter('Z') {
			target.Z = current.Z + cmd.GetParameter('Z', 0)
		}
	}

	if cmd.HasParameter('E') {
		if interp.st.absoluteExtrude {
			target.E = cmd.GetParameter('E', current.E)
		} else {
			target.E = current.E + cmd.GetParameter('E', 0)
		}
	}

	if target == current {
		return nil // zero-length move: nothing to plan
	}

	vmaxE := interp.st.feedRate
	vminE := interp.st.feedRate * 0.1
	if vminE <= 0 {
		vminE = 0.01
	}

	if err := interp.planner.MoveTo(interp.now(), target, interp.st.feedRate, vminE, vmaxE); err != nil {
		return fmt.Errorf("moveTo: %w", err)
	}
	return interp.drain()
}

// doHome executes G28: homes all configured axes in one HomeEndstops call,
// draining events the same way doMove does, so a sub-axis G28 still
// triggers a full home. The homing velocity is the HomingVel of the first
// axis found with one set (map iteration order, so which one is not fixed),
// else DefaultVelocity. Only the named axes (or all, if none are named) are
// then marked homed.
func (interp *Interpreter) doHome(cmd *Command) error {
	vHome := interp.config.DefaultVelocity
	for _, axis := range interp.config.Axes {
		if axis.HomingVel > 0 {
			vHome = axis.HomingVel
			break
		}
	}

	if err := interp.planner.HomeEndstops(interp.now(), vHome); err != nil {
		return fmt.Errorf("homeEndstops: %w", err)
	}
	if err := interp.drain(); err != nil {
		return err
	}

	names := interp.coordMap.AxisNames()
	wantAll := !cmd.HasParameter('X') && !cmd.HasParameter('Y') && !cmd.HasParameter('Z')
	for _, n := range names {
		if wantAll || cmd.HasParameter(toUpper(n[0])) {
			interp.st.homed[n] = true
		}
	}
	return nil
}

// doSetPosition executes G92: rebase the current position without motion.
// The planner has no direct position-override operation (spec.md §4.3 only
// exposes MoveTo/HomeEndstops), so this accepts the command and returns nil
// without changing any position; restarting the planner with a new starting
// Mechanical is the way to override position.
func (interp *Interpreter) doSetPosition(cmd *Command) error {
	return nil
}

// drain pumps every pending OutputEvent from the planner into the
// scheduler until the current plan is exhausted (spec.md §2's consumer
// loop). This is the interpreter's only blocking point, by way of
// scheduler.Queue's backpressure (spec.md §5).
func (interp *Interpreter) drain() error {
	for {
		ev, ok := interp.planner.NextStep()
		if !ok {
			return nil
		}
		if err := interp.scheduler.Queue(ev); err != nil {
			return fmt.Errorf("queue: %w", err)
		}
	}
}

// Homed reports whether the named axis has completed a home since startup.
func (interp *Interpreter) Homed(axis string) bool { return interp.st.homed[axis] }
