package rpi

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"printipi/core"
	"printipi/hwsched"
	"printipi/planner"
)

// DMA channel register offsets, relative to this channel's own block
// (spec.md §6). From TI onward they follow the control-block layout two
// registers later, after CS and CONBLK_AD.
const (
	dmaRegCS        = 0x00
	dmaRegConblkAD   = 0x04
	dmaRegTI         = 0x08
	dmaRegSourceAD   = 0x0C
	dmaRegDestAD     = 0x10
	dmaRegTXFRLen    = 0x14
	dmaRegStride     = 0x18
	dmaRegNextConbk  = 0x1C
)

// Config selects the board generation and ring sizing for a Scheduler.
// Zero value is not usable; use DefaultConfig.
type Config struct {
	PeripheralBase uint32  // DefaultPeripheralBase for a Pi 1/Zero; 0x3F000000 for Pi 2/3, 0xFE000000 for Pi 4
	RingSize       int     // frames in the ring; must be a power of two (spec.md §4.4.1)
	FrameRateHz    float64 // F: ring frames consumed per second
	PWMClockHz     float64 // PLLD frequency feeding the PWM clock manager (500MHz on BCM2835)
	MaxSchedAhead  time.Duration
	MinSchedAhead  time.Duration
	ResyncEvery    time.Duration
}

// DefaultConfig returns spec.md §4.4's defaults for a Raspberry Pi 1/Zero.
func DefaultConfig() Config {
	return Config{
		PeripheralBase: DefaultPeripheralBase,
		RingSize:       8192,
		FrameRateHz:    1_000_000,
		PWMClockHz:     500_000_000,
		MaxSchedAhead:  7500 * time.Microsecond,
		MinSchedAhead:  128 * time.Microsecond,
		ResyncEvery:    32 * time.Millisecond,
	}
}

// Scheduler is the real BCM283x DMA-paced GPIO backend (spec.md §4.4.1).
// It implements hwsched.Scheduler.
//
// Grounded on original_source's drv::rpi::HardwareScheduler: a frame ring
// cycled forever by a 3-CB-per-frame DMA chain, a PWM peripheral pacing
// the chain's advance, and a periodic resync reading the active CB's
// STRIDE field back out to recover t0 (spec.md §4.4.2).
type Scheduler struct {
	cfg  Config
	mem  *memSession
	gpio []byte
	dma  []byte
	pwm  pwmRegs
	clk  clockRegs
	cbs  *cbChain

	mu        sync.Mutex
	t0        float64
	lastResyncAt time.Time
	nowFn     func() float64
}

var _ hwsched.Scheduler = (*Scheduler)(nil)

// NewScheduler opens /dev/mem, maps the GPIO/DMA/PWM/clock peripheral
// windows, builds the frame ring and CB chain, configures the PWM clock
// and channel, and starts the DMA engine running. now must return the
// same absolute-time units the planner uses (seconds).
func NewScheduler(cfg Config, now func() float64) (*Scheduler, error) {
	if cfg.RingSize&(cfg.RingSize-1) != 0 {
		return nil, fmt.Errorf("ring size %d is not a power of two", cfg.RingSize)
	}

	mem, err := openMemSession(cfg.PeripheralBase)
	if err != nil {
		return nil, err
	}
	gpio, err := mem.mapPeripheral("gpio", gpioOffset, 0x100)
	if err != nil {
		mem.close()
		return nil, err
	}
	dma, err := mem.mapPeripheral("dma", dmaOffset+dmaChannel*dmaChannelSize, dmaChannelSize)
	if err != nil {
		mem.close()
		return nil, err
	}
	pwmMem, err := mem.mapPeripheral("pwm", pwmOffset, 0x100)
	if err != nil {
		mem.close()
		return nil, err
	}
	clkMem, err := mem.mapPeripheral("clock", clockOffset, 0x100)
	if err != nil {
		mem.close()
		return nil, err
	}

	cbs, err := buildCBChain(cfg.RingSize, cfg.FrameRateHz, pwmFIF1Bus)
	if err != nil {
		mem.close()
		return nil, err
	}

	s := &Scheduler{
		cfg:   cfg,
		mem:   mem,
		gpio:  gpio,
		dma:   dma,
		pwm:   pwmRegs{pwmMem},
		clk:   clockRegs{clkMem},
		cbs:   cbs,
		nowFn: now,
	}

	if err := configurePWMClock(s.clk, cfg.PWMClockHz, cfg.FrameRateHz); err != nil {
		s.Close()
		return nil, err
	}
	configurePWM(s.pwm)
	s.startDMA()

	s.t0 = now()
	s.lastResyncAt = time.Now()
	return s, nil
}

// startDMA resets the channel and loads it with the CB chain's entry
// point, then sets ACTIVE (spec.md §6).
func (s *Scheduler) startDMA() {
	s.writeDMA(dmaRegCS, dmaCSReset)
	time.Sleep(10 * time.Microsecond)
	s.writeDMA(dmaRegConblkAD, s.cbs.firstCBBus())
	// Priority = panic priority = 14 of 15, the highest non-reserved level
	// (spec.md §4.4.1).
	s.writeDMA(dmaRegCS, dmaCSPriority(14)|dmaCSPanicPriority(14)|dmaCSDisdebug|dmaCSActive)
}

func (s *Scheduler) writeDMA(off uint32, v uint32) { binary.LittleEndian.PutUint32(s.dma[off:], v) }
func (s *Scheduler) readDMA(off uint32) uint32     { return binary.LittleEndian.Uint32(s.dma[off:]) }

// Queue implements hwsched.Scheduler: it blocks (backpressure) until ev is
// within the scheduling window, computes its ring slot from t0, and ORs
// the pin transition into that frame (spec.md §4.4.3 / §5).
func (s *Scheduler) Queue(ev planner.OutputEvent) error {
	for {
		ahead := ev.TAbs - s.nowFn()
		if ahead < 0 {
			// Scheduling behind is recoverable, never dropped: push the
			// event to now + MinSchedAhead, log it, and emit the pulse at
			// that rewritten time.
			core.Warnf("hwsched/rpi: event for pin %d arrived %.6fs late, rescheduling", ev.Pin, -ahead)
			ev.TAbs = s.nowFn() + s.cfg.MinSchedAhead.Seconds()
			break
		}
		if ahead <= s.cfg.MaxSchedAhead.Seconds() {
			break
		}
		time.Sleep(time.Duration((ahead - s.cfg.MaxSchedAhead.Seconds()) * float64(time.Second)))
	}
	// Events arriving inside MinSchedAhead of the DMA cursor aren't
	// rejected (spec.md §4.4.3 treats this as a late-event warning rather
	// than a hard error): the frame write below just races the cursor and
	// the transition fires one lap later than requested if it loses.

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := FrameIndex(ev.TAbs, s.t0, s.cfg.FrameRateHz, s.cfg.RingSize)
	f := s.cbs.frameAt(idx)
	f.SetPin(ev.Pin, ev.Level == planner.High)
	s.cbs.setFrameAt(idx, f)
	return nil
}

// QueuePWM implements hwsched.Scheduler: it synthesizes a delta-sigma
// pattern over the whole ring and installs it as the clear-ring template
// for pin, so every lap regenerates the pattern without further producer
// involvement (spec.md §4.4.4).
func (s *Scheduler) QueuePWM(pin uint32, duty, idealPeriod float64) error {
	bits := hwsched.SynthesizeDeltaSigma(s.cfg.RingSize, duty, idealPeriod, s.cfg.FrameRateHz)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, high := range bits {
		f := Frame{}
		f.SetPin(pin, high)
		s.cbs.setClearAt(i, f)
	}
	return nil
}

// OnIdleCpu implements hwsched.Scheduler: on a wide idle gap it resyncs t0
// against the DMA engine's live cursor (spec.md §4.4.2). It never asks to
// be called back sooner than the configured resync interval.
func (s *Scheduler) OnIdleCpu(interval hwsched.IdleInterval) bool {
	if interval != hwsched.IdleWide {
		return false
	}
	if time.Since(s.lastResyncAt) < s.cfg.ResyncEvery {
		return false
	}
	s.resync()
	return false
}

// resync samples the active CB's STRIDE field (the pacing CB stores its
// ring index there, spec.md §4.4.2 step 2) and recomputes t0, warning via
// DriftExceeds if the producer appears to be falling behind.
func (s *Scheduler) resync() {
	sampleTime := s.nowFn()
	stride := s.readDMA(dmaRegStride)
	// The pacing CB (3i+0) is 1D, so the hardware's Y-length field (bits
	// 16-31) reads zero when it is the active CB; a nonzero Y-length means
	// we sampled mid-transfer on CB(3i+1)'s 2D copy and should skip this
	// round rather than resync from a stale/irrelevant STRIDE value.
	if stride>>16 != 0 {
		return
	}
	idx := int(stride & 0xFFFF)

	s.mu.Lock()
	defer s.mu.Unlock()
	newT0 := ResyncT0(idx, sampleTime, s.cfg.FrameRateHz)
	ringPeriod := float64(s.cfg.RingSize) / s.cfg.FrameRateHz
	if DriftExceeds(newT0, s.t0, ringPeriod, 20e-6) {
		// Large drift means the producer isn't keeping the ring fed close
		// to real time; warn, then accept the hardware's account of the
		// truth.
		core.Warnf("hwsched/rpi: t0 drifted by more than 20us at resync (%.6fs -> %.6fs)", s.t0, newT0)
	}
	s.t0 = newT0
	s.lastResyncAt = time.Now()
}

// Close aborts the DMA channel and unmaps every peripheral and memory
// region this scheduler owns (spec.md §7 exit-handler requirement: leave
// no DMA engine running against freed memory).
func (s *Scheduler) Close() error {
	s.writeDMA(dmaRegCS, dmaCSAbort)
	time.Sleep(100 * time.Microsecond)
	s.writeDMA(dmaRegCS, dmaCSReset)
	s.cbs.close()
	return s.mem.close()
}
