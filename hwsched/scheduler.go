// Package hwsched implements the DMA-paced GPIO hardware scheduler (C4):
// it accepts OutputEvents from the planner and ensures the physical pin
// transitions at the requested absolute time, independent of producer
// jitter (spec.md §4.4).
//
// Two backends satisfy Scheduler: hwsched/rpi, the real BCM283x DMA engine,
// and the generic fallback in this package, a blocking digital_write used
// on non-rpi hosts and in tests (spec.md §4.4.6).
package hwsched

import "printipi/planner"

// IdleInterval tells OnIdleCpu how large a gap in caller activity just
// occurred, so the scheduler can decide whether now is a good time to run
// its periodic resync (spec.md §4.4.2).
type IdleInterval int8

const (
	IdleShort IdleInterval = iota
	IdleWide
)

// Scheduler is the hardware scheduler's consumer-side contract (spec.md §6).
type Scheduler interface {
	// Queue schedules a single pin transition at ev.TAbs.
	Queue(ev planner.OutputEvent) error

	// QueuePWM writes a repeating delta-sigma pattern for pin into the
	// scheduler's persistent ring, achieving the given duty cycle with at
	// most one low-to-high transition per idealPeriod seconds.
	QueuePWM(pin uint32, duty float64, idealPeriod float64) error

	// OnIdleCpu is called by the caller's main loop whenever it has spare
	// cycles; interval indicates how much spare time is available. Returns
	// true if the scheduler wants to be called again soon.
	OnIdleCpu(interval IdleInterval) (wantsMore bool)
}
