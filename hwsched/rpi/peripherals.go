package rpi

// Peripheral base addresses for a Raspberry Pi 1 (BCM2835), spec.md §6.
// Newer Pis relocate the peripheral block to 0x3F000000/0xFE000000; this
// constant is the default a caller overrides through
// Config.PeripheralBase.
const (
	DefaultPeripheralBase = 0x20000000

	gpioOffset  = 0x200000
	dmaOffset   = 0x007000
	pwmOffset   = 0x20C000
	clockOffset = 0x101000
	timerOffset = 0x003000

	busAddrAlias = 0x7E000000 // peripheral bus address alias, relative to peripheralBase

	dmaChannel     = 5
	dmaChannelSize = 0x100 // per-channel register block stride

	gpset0 = 0x1C
	gpclr0 = 0x28

	pwmFIF1     = 0x18
	pwmFIFOSize = 1

	cmPwmCtl  = 0xA0
	cmPwmDiv  = 0xA4
	cmPasswd  = 0x5A000000
	cmSrcPLLD = 6
	cmEnab    = 1 << 4
	cmBusy    = 1 << 7

	// PWM control register bits (channel 1), spec.md §6.
	pwmCtlPWEN1   = 1 << 0
	pwmCtlRPTL1   = 1 << 2
	pwmCtlUSEF1   = 1 << 5
	pwmCtlCLRFIFO = 1 << 6

	pwmDmacENAB = 1 << 31

	pwmStaERRS = 0x1 << 3 // BERR, GAPO1-4, RERR1, WERR1 cleared together

	// DMA channel register bits, spec.md §6.
	dmaCSActive        = 1 << 0
	dmaCSEnd           = 1 << 1
	dmaCSReset         = 1 << 31
	dmaCSAbort         = 1 << 30
	dmaCSDisdebug      = 1 << 28
	dmaCSPriorityBase  = 16
	dmaCSPanicPrioBase = 20

	// DMA control-block TI flags, spec.md §6.
	tiNoWideBursts = 1 << 26
	tiPermapPWM    = 5 << 16
	tiSrcInc       = 1 << 8
	tiDestDREQ     = 1 << 6
	tiDestInc      = 1 << 4
	tiTDMode       = 1 << 1

	enableDMAReg = 0xFF0
)

func dmaCSPriority(p uint32) uint32      { return (p & 0xf) << dmaCSPriorityBase }
func dmaCSPanicPriority(p uint32) uint32 { return (p & 0xf) << dmaCSPanicPrioBase }

// pwmDmacPanic and pwmDmacDreq pack the DMAC register's PANIC (15:8) and
// DREQ (7:0) threshold fields (spec.md §6).
func pwmDmacPanic(v uint32) uint32 { return v << 8 }
func pwmDmacDreq(v uint32) uint32  { return v }

// txfrLen2D packs a 2D-mode TXFR_LEN register: ylen rows of xlen bytes.
func txfrLen2D(ylen, xlen uint32) uint32 {
	return (ylen-1)<<16 | xlen
}

// strideReg packs a STRIDE register's 2D source/dest byte strides.
func strideReg(dstStride, srcStride int32) uint32 {
	return uint32(uint16(dstStride))<<16 | uint32(uint16(srcStride))
}
