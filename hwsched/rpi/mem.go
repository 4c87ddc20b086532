package rpi

import (
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const pageSize = 4096

// sdramUncachedAlias is the bus-address alias through which the DMA engine
// reaches SDRAM uncached; OR'd onto a page's physical address.
const sdramUncachedAlias = 0x40000000

// physPage is one locked page of physical memory, reachable both as a CPU
// virtual address (mapped through /dev/mem at its bus address, so writes
// go through L2 coherently, per spec.md §4.4.1) and as the DMA-visible bus
// address the engine is programmed with.
type physPage struct {
	virt []byte
	bus  uint32
	phys uint64
}

// memSession owns the peripheral register windows (GPIO/DMA/PWM/CLOCK) this
// backend maps and the /dev/mem handle behind them. The locked pages backing
// the frame ring and CB chain are separate regions, released by
// cbChain.close. Its close unmaps the peripheral windows; callers must not
// use any of those slices afterward.
//
// Grounded on original_source's mitpi.cpp/h pagemap-based physical-address
// resolution. Isolated in this one small file per spec.md §9's note that
// pagemap reliance is non-portable and kernel-version-sensitive, so a
// later swap to /dev/vcio or the VCS mailbox allocator only touches here.
type memSession struct {
	devMem         *os.File
	peripheralBase uint32
	regions        map[string][]byte
}

func openMemSession(peripheralBase uint32) (*memSession, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/mem (must run as root): %w", err)
	}
	return &memSession{devMem: f, peripheralBase: peripheralBase, regions: make(map[string][]byte)}, nil
}

// mapPeripheral mmaps a peripheral's register window at peripheralBase+offset.
func (m *memSession) mapPeripheral(name string, offset uint32, size int) ([]byte, error) {
	addr := int64(m.peripheralBase) + int64(offset)
	data, err := unix.Mmap(int(m.devMem.Fd()), addr, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap peripheral %s at 0x%x: %w", name, addr, err)
	}
	m.regions[name] = data
	return data, nil
}

func (m *memSession) close() error {
	var firstErr error
	for name, region := range m.regions {
		if err := unix.Munmap(region); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("munmap %s: %w", name, err)
		}
	}
	if err := m.devMem.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// region is a virtually-contiguous, physically-possibly-fragmented byte
// range backed by one or more mlock'd anonymous pages. DMA structures
// inside it address each other via busAddr instead of assuming physical
// contiguity across the whole region, since the kernel gives no such
// guarantee for anonymous pages.
type region struct {
	bytes []byte
	pages []physPage
}

// newRegion allocates and locks nPages pages and resolves each one's
// physical (and therefore bus) address via /proc/self/pagemap.
func newRegion(nPages int) (*region, error) {
	size := nPages * pageSize
	virt, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("mmap %d anonymous pages: %w", nPages, err)
	}
	if err := unix.Mlock(virt); err != nil {
		unix.Munmap(virt)
		return nil, fmt.Errorf("mlock %d pages (requires CAP_IPC_LOCK): %w", nPages, err)
	}

	pagemap, err := os.Open("/proc/self/pagemap")
	if err != nil {
		unix.Munmap(virt)
		return nil, fmt.Errorf("open /proc/self/pagemap: %w", err)
	}
	defer pagemap.Close()

	pages := make([]physPage, nPages)
	entry := make([]byte, 8)
	for i := 0; i < nPages; i++ {
		vaddr := uintptr(unsafe.Pointer(&virt[i*pageSize]))
		vpn := vaddr / pageSize
		if _, err := pagemap.ReadAt(entry, int64(vpn)*8); err != nil {
			unix.Munmap(virt)
			return nil, fmt.Errorf("read pagemap entry for page %d: %w", i, err)
		}
		raw := binary.LittleEndian.Uint64(entry)
		const presentBit = uint64(1) << 63
		if raw&presentBit == 0 {
			unix.Munmap(virt)
			return nil, fmt.Errorf("page %d of locked region not present in RAM", i)
		}
		pfn := raw & ((uint64(1) << 55) - 1)
		phys := pfn * pageSize
		pages[i] = physPage{
			virt: virt[i*pageSize : (i+1)*pageSize],
			bus:  uint32(phys) | sdramUncachedAlias,
			phys: phys,
		}
	}
	return &region{bytes: virt, pages: pages}, nil
}

// busAddr returns the DMA-visible bus address of the byte at offset within
// this region. offset must not straddle a page boundary within a single
// addressed structure (frames and control blocks are sized to divide
// pageSize evenly, so this never happens in practice).
func (r *region) busAddr(offset int) uint32 {
	page := offset / pageSize
	within := uint32(offset % pageSize)
	return r.pages[page].bus + within
}

func (r *region) close() error {
	return unix.Munmap(r.bytes)
}
