package rpi

import "encoding/binary"

// controlBlock is the BCM283x DMA engine's 32-byte control-block layout
// (spec.md §6): TI (transfer info), SOURCE_AD, DEST_AD, TXFR_LEN, STRIDE,
// NEXTCONBK, and two reserved words the hardware ignores on read and
// requires zeroed on write.
const controlBlockSize = 32

const (
	cbOffTI        = 0
	cbOffSourceAD  = 4
	cbOffDestAD    = 8
	cbOffTXFRLen   = 12
	cbOffStride    = 16
	cbOffNextCB    = 20
)

// writeControlBlock encodes one control block into dst (which must be at
// least controlBlockSize bytes). All address arguments are bus addresses
// the caller has already resolved with region.busAddr; nextCB chains to
// the following CB.
func writeControlBlock(dst []byte, ti, sourceAD, destAD, txfrLen, stride, nextCB uint32) {
	binary.LittleEndian.PutUint32(dst[cbOffTI:], ti)
	binary.LittleEndian.PutUint32(dst[cbOffSourceAD:], sourceAD)
	binary.LittleEndian.PutUint32(dst[cbOffDestAD:], destAD)
	binary.LittleEndian.PutUint32(dst[cbOffTXFRLen:], txfrLen)
	binary.LittleEndian.PutUint32(dst[cbOffStride:], stride)
	binary.LittleEndian.PutUint32(dst[cbOffNextCB:], nextCB)
	// two reserved words left zero
}

// frameSize is the byte size of one Frame (4 uint32 words): GPSet[0],
// GPSet[1], GPClr[0], GPClr[1].
const frameSize = 16

// cbChain owns the three regions that make up the DMA engine's permanent
// working set: the frame ring (pin transitions), the clear ring (the
// template each frame resets to after consumption, used for persistent
// PWM per spec.md §4.4.4), and the 3*n control blocks that cycle between
// them forever.
//
// Grounded on original_source's HardwareScheduler::queue/makeGpioFrames,
// translated into an explicit byte-level builder instead of C++ packed
// structs, since Go gives no portable way to overlay a struct onto
// DMA-addressed memory.
type cbChain struct {
	n        int
	frames   *region
	clears   *region
	cbs      *region
	dmaCh    []byte // this DMA channel's register block
	pwmBus   uint32 // PWM_FIF1 register bus address
	frameHz  float64
}

// buildCBChain allocates the frame ring, clear ring, and CB chain for an
// n-frame ring at frameHz frames/second, and wires every CB's NEXTCONBK so
// the chain cycles forever: CB(3i+0) paces on the PWM DREQ and stores i in
// its own STRIDE field for resync (spec.md §4.4.2); CB(3i+1) copies frame
// i's two set words and two clear words into GPSET0/GPSET1/GPCLR0/GPCLR1
// with a 2D transfer that jumps the reserved word between GPSET1 and
// GPCLR0; CB(3i+2) copies the clear ring's frame i back over frame i so
// that queue_pwm's persistent pattern (or zero, ordinarily) reappears
// every lap (spec.md §4.4.1 step breakdown).
func buildCBChain(n int, frameHz float64, pwmFIFOBus uint32) (*cbChain, error) {
	framePages := pagesFor(n * frameSize)
	frames, err := newRegion(framePages)
	if err != nil {
		return nil, err
	}
	clears, err := newRegion(framePages)
	if err != nil {
		return nil, err
	}
	cbPages := pagesFor(n * 3 * controlBlockSize)
	cbs, err := newRegion(cbPages)
	if err != nil {
		return nil, err
	}

	zero := make([]byte, frameSize)
	for i := 0; i < n; i++ {
		copy(frames.bytes[i*frameSize:], zero)
		copy(clears.bytes[i*frameSize:], zero)
	}

	for i := 0; i < n; i++ {
		frameBus := frames.busAddr(i * frameSize)
		clearBus := clears.busAddr(i * frameSize)

		cb0 := i * 3 * controlBlockSize
		cb1 := cb0 + controlBlockSize
		cb2 := cb1 + controlBlockSize
		cb0Bus := cbs.busAddr(cb0)
		cb1Bus := cbs.busAddr(cb1)
		cb2Bus := cbs.busAddr(cb2)
		nextCB0 := (i*3 + 1) % (n * 3)
		nextCB1 := (i*3 + 2) % (n * 3)
		nextCB2 := ((i + 1) * 3) % (n * 3)
		_ = cb0Bus

		// CB 3i+0: pace transfer. Source is an arbitrary constant word
		// (the CB chain itself, reread harmlessly) written to the PWM
		// FIFO so the DREQ gate releases this CB only at the PWM's rate;
		// STRIDE is unused in 1D mode so it free-carries the index i.
		writeControlBlock(cbs.bytes[cb0:cb0+controlBlockSize],
			tiPermapPWM|tiDestDREQ|tiNoWideBursts,
			cb0Bus, // harmless self-referential source word
			pwmFIFOBus,
			4,
			uint32(i),
			cbs.busAddr(nextCB0),
		)

		// CB 3i+1: 2D copy of frame i's 4 words into GPSET0/GPSET1 then
		// (skipping the reserved word) GPCLR0/GPCLR1. Two rows of 8
		// bytes; dest stride of 4 bytes beyond the 8 already advanced
		// skips the reserved word at 0x24, so the second row starts at
		// GPCLR0 (0x28).
		writeControlBlock(cbs.bytes[cb1:cb1+controlBlockSize],
			tiSrcInc|tiDestInc|tiTDMode|tiNoWideBursts,
			frameBus,
			gpsetBase,
			txfrLen2D(2, 8),
			strideReg(4, 0),
			cbs.busAddr(nextCB1),
		)

		// CB 3i+2: reset frame i from the clear ring's template.
		writeControlBlock(cbs.bytes[cb2:cb2+controlBlockSize],
			tiSrcInc|tiDestInc|tiNoWideBursts,
			clearBus,
			frameBus,
			frameSize,
			0,
			cbs.busAddr(nextCB2),
		)
	}

	return &cbChain{n: n, frames: frames, clears: clears, cbs: cbs, pwmBus: pwmFIFOBus, frameHz: frameHz}, nil
}

// pagesFor returns how many pageSize pages are needed to hold nBytes
// without any single controlBlockSize/frameSize unit straddling a page.
func pagesFor(nBytes int) int {
	p := (nBytes + pageSize - 1) / pageSize
	if p == 0 {
		p = 1
	}
	return p
}

// frameAt returns a decoded copy of frame i's 16 raw bytes within the
// frame ring; changes to it are stored back with setFrameAt.
func (c *cbChain) frameAt(i int) Frame {
	b := c.frames.bytes[i*frameSize:]
	return Frame{
		GPSet: [2]uint32{le32(b[0:]), le32(b[4:])},
		GPClr: [2]uint32{le32(b[8:]), le32(b[12:])},
	}
}

// setFrameAt writes f into frame slot i of the frame ring.
func (c *cbChain) setFrameAt(i int, f Frame) {
	b := c.frames.bytes[i*frameSize:]
	putLE32(b[0:], f.GPSet[0])
	putLE32(b[4:], f.GPSet[1])
	putLE32(b[8:], f.GPClr[0])
	putLE32(b[12:], f.GPClr[1])
}

// setClearAt writes the persistent template frame i resets to after
// consumption, the mechanism QueuePWM uses to hold a pin high or low
// across laps (spec.md §4.4.4).
func (c *cbChain) setClearAt(i int, f Frame) {
	b := c.clears.bytes[i*frameSize:]
	putLE32(b[0:], f.GPSet[0])
	putLE32(b[4:], f.GPSet[1])
	putLE32(b[8:], f.GPClr[0])
	putLE32(b[12:], f.GPClr[1])
}

// firstCBBus returns the bus address of CB(3*0+0), the chain's entry point
// for CONBLK_AD.
func (c *cbChain) firstCBBus() uint32 {
	return c.cbs.busAddr(0)
}

func (c *cbChain) close() {
	c.frames.close()
	c.clears.close()
	c.cbs.close()
}

func le32(b []byte) uint32  { return binary.LittleEndian.Uint32(b) }
func putLE32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
