package rpi

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Bus addresses for the registers the DMA control blocks target directly
// (as opposed to the CPU-side peripheral windows memSession maps for this
// process's own configuration writes). These must use the 0x7E alias
// regardless of peripheralBase, since the DMA engine's DEST_AD/SOURCE_AD
// fields are always expressed in bus-address space (spec.md §6).
const (
	gpsetBase = busAddrAlias + gpioOffset + gpset0
	pwmFIF1Bus = busAddrAlias + pwmOffset + pwmFIF1
)

// pwmRegs is a thin field-accessor over the PWM peripheral's mapped
// register window (offsets relative to pwmOffset, spec.md §6).
type pwmRegs struct{ b []byte }

func (r pwmRegs) ctl() uint32       { return binary.LittleEndian.Uint32(r.b[0x00:]) }
func (r pwmRegs) setCtl(v uint32)   { binary.LittleEndian.PutUint32(r.b[0x00:], v) }
func (r pwmRegs) sta() uint32       { return binary.LittleEndian.Uint32(r.b[0x04:]) }
func (r pwmRegs) setSta(v uint32)   { binary.LittleEndian.PutUint32(r.b[0x04:], v) }
func (r pwmRegs) setDmac(v uint32)  { binary.LittleEndian.PutUint32(r.b[0x08:], v) }
func (r pwmRegs) setRng1(v uint32)  { binary.LittleEndian.PutUint32(r.b[0x10:], v) }

// clockRegs is the clock manager's PWM-clock field accessor.
type clockRegs struct{ b []byte }

func (r clockRegs) setCtl(v uint32) { binary.LittleEndian.PutUint32(r.b[cmPwmCtl:], v) }
func (r clockRegs) ctl() uint32     { return binary.LittleEndian.Uint32(r.b[cmPwmCtl:]) }
func (r clockRegs) setDiv(v uint32) { binary.LittleEndian.PutUint32(r.b[cmPwmDiv:], v) }

// configurePWMClock sets the PWM clock manager to derive from PLLD at the
// divisor needed to land on frameHz output words/second through the PWM's
// RNG1 range register (spec.md §6: "PWM clock source PLLD, divided down so
// each FIFO word takes exactly 1/F seconds to drain at RNG1=2").
//
// Grounded on original_source's mitpi.cpp PWM/clock-manager bring-up
// sequence: disable the clock, wait for !BUSY, write the new divisor,
// re-enable, wait for BUSY.
func configurePWMClock(clk clockRegs, pwmClockHz, frameHz float64) error {
	const rng1 = 2 // PWM range in clock ticks per output word; spec.md fixes this at 2
	divisor := pwmClockHz / (frameHz * rng1)
	if divisor < 2 || divisor >= 4096 {
		return fmt.Errorf("pwm clock divisor %.2f out of range [2,4096) for frameHz=%.0f", divisor, frameHz)
	}
	intDiv := uint32(divisor)

	clk.setCtl(cmPasswd | cmSrcPLLD) // disable, select source
	deadline := time.Now().Add(100 * time.Millisecond)
	for clk.ctl()&cmBusy != 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("pwm clock manager stuck busy while disabling")
		}
	}
	clk.setDiv(cmPasswd | (intDiv << 12))
	clk.setCtl(cmPasswd | cmSrcPLLD | cmEnab)
	deadline = time.Now().Add(100 * time.Millisecond)
	for clk.ctl()&cmBusy == 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("pwm clock manager never reports busy after enable")
		}
	}
	return nil
}

// configurePWM puts PWM channel 1 into FIFO-driven, DREQ-paced mode
// (spec.md §6): USEF1 (read the FIFO instead of a fixed DAT1 value),
// CLRFIFO then PWEN1/RPTL1, and a DMAC threshold that requests a DREQ
// whenever the FIFO has room for more than one word.
func configurePWM(pwm pwmRegs) {
	pwm.setCtl(pwmCtlCLRFIFO)
	time.Sleep(10 * time.Microsecond)
	pwm.setRng1(2)
	pwm.setDmac(pwmDmacENAB | pwmDmacPanic(7) | pwmDmacDreq(1))
	pwm.setCtl(pwmCtlUSEF1 | pwmCtlRPTL1 | pwmCtlPWEN1)
}
