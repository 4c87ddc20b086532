// Package tmcdriver configures a TMC5240 stepper driver's current and
// microstepping registers over SPI. The driver's own step/dir pins are
// what the planner and hardware scheduler actually pace (spec.md §4.3/
// §4.4); this package is a one-time (and on-demand current change)
// configuration path alongside that, not part of the timing-critical
// loop.
//
// Grounded on the teacher's core/tmc5240_regs.go register map and
// core/spi_hal.go SPIDriver abstraction — this package is the home those
// two otherwise-unused HAL/data files are adapted into.
package tmcdriver

import (
	"encoding/binary"
	"fmt"

	"printipi/core"
)

// Config describes one axis's TMC5240 current and microstepping setup.
type Config struct {
	Bus  core.SPIBusID
	Rate uint32 // SPI clock rate, Hz

	RunCurrent  uint8 // 0-31, IRUN
	HoldCurrent uint8 // 0-31, IHOLD
	HoldDelay   uint8 // 0-15, IHOLDDELAY

	Microsteps uint16 // 1,2,4,...,256; 256 selects the smoothest StealthChop table
	StealthChop bool
}

// Driver talks to one TMC5240 over SPI.
type Driver struct {
	busHandle interface{}
	cfg       Config
}

// Open configures the SPI bus and returns a Driver ready to Configure the
// chip's registers.
func Open(cfg Config) (*Driver, error) {
	handle, err := core.MustSPI().ConfigureBus(core.SPIConfig{BusID: cfg.Bus, Mode: 3, Rate: cfg.Rate})
	if err != nil {
		return nil, fmt.Errorf("configure SPI bus: %w", err)
	}
	return &Driver{busHandle: handle, cfg: cfg}, nil
}

// Configure writes IHOLD_IRUN, CHOPCONF (microstep resolution), and GCONF
// (StealthChop enable) to the chip, the minimum register set original
// firmware's drivers/a4988.h analogue would cover with step/dir-only
// hardware — TMC adds current and chop-mode control on top.
func (d *Driver) Configure() error {
	iholdIrun := uint32(d.cfg.HoldCurrent) | uint32(d.cfg.RunCurrent)<<8 | uint32(d.cfg.HoldDelay)<<16
	if err := d.writeRegister(core.TMC5240_IHOLD_IRUN, iholdIrun); err != nil {
		return err
	}

	mres, err := microstepResolutionBits(d.cfg.Microsteps)
	if err != nil {
		return err
	}
	chopconf := uint32(core.TMC5240_CHOPCONF_DEFAULT)&0x0FFFFFFF | mres<<24
	if err := d.writeRegister(core.TMC5240_CHOPCONF, chopconf); err != nil {
		return err
	}

	gconf := uint32(0)
	if d.cfg.StealthChop {
		gconf |= core.TMC5240_GCONF_EN_PWM_MODE
	}
	return d.writeRegister(core.TMC5240_GCONF, gconf)
}

// Status reads DRV_STATUS for overtemperature/short/open-load flags.
func (d *Driver) Status() (uint32, error) {
	return d.readRegister(core.TMC5240_DRV_STATUS)
}

func (d *Driver) writeRegister(addr uint8, value uint32) error {
	tx := make([]byte, 5)
	tx[0] = addr | core.TMC5240_WRITE_BIT
	binary.BigEndian.PutUint32(tx[1:], value)
	rx := make([]byte, 5)
	return core.MustSPI().Transfer(d.busHandle, tx, rx)
}

func (d *Driver) readRegister(addr uint8) (uint32, error) {
	tx := make([]byte, 5)
	tx[0] = addr | core.TMC5240_READ_BIT
	rx := make([]byte, 5)
	if err := core.MustSPI().Transfer(d.busHandle, tx, rx); err != nil {
		return 0, err
	}
	// TMC5240 SPI: the first transaction only latches the read address;
	// the data returned belongs to the *previous* transfer, so this issues
	// the transaction twice and returns the data from the second.
	if err := core.MustSPI().Transfer(d.busHandle, tx, rx); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(rx[1:]), nil
}

// microstepResolutionBits maps a microstep count to the CHOPCONF MRES
// field (4 bits: 0=256 microsteps ... 8=full step, halving each step).
func microstepResolutionBits(microsteps uint16) (uint32, error) {
	switch microsteps {
	case 256:
		return 0, nil
	case 128:
		return 1, nil
	case 64:
		return 2, nil
	case 32:
		return 3, nil
	case 16:
		return 4, nil
	case 8:
		return 5, nil
	case 4:
		return 6, nil
	case 2:
		return 7, nil
	case 1:
		return 8, nil
	default:
		return 0, fmt.Errorf("unsupported microstep count %d", microsteps)
	}
}
