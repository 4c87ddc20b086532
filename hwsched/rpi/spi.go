package rpi

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"printipi/core"
)

// SPIDriver implements core.SPIDriver over the kernel's spidev interface via
// periph.io, the same library seedhammer's lcd driver uses to reach its
// panel over SPI. Each core.SPIBusID selects a chip-select line on the
// Pi's SPI0 bus (spidev0.0, spidev0.1, ...), the TMC5240 driver's addressing
// scheme since each axis's driver gets its own CS.
type SPIDriver struct {
	mu    sync.Mutex
	ports map[core.SPIBusID]spi.PortCloser
}

// NewSPIDriver initializes periph's host drivers and returns an SPIDriver
// ready to register with core.SetSPIDriver.
func NewSPIDriver() (*SPIDriver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("rpi: periph host init: %w", err)
	}
	return &SPIDriver{ports: make(map[core.SPIBusID]spi.PortCloser)}, nil
}

// ConfigureBus opens (or reopens) the spidev port for cfg.BusID and returns
// a spi.Conn as the opaque handle Transfer expects.
func (d *SPIDriver) ConfigureBus(cfg core.SPIConfig) (interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.ports[cfg.BusID]; ok {
		p.Close()
		delete(d.ports, cfg.BusID)
	}

	p, err := spireg.Open(fmt.Sprintf("SPI0.%d", cfg.BusID))
	if err != nil {
		return nil, fmt.Errorf("rpi: open spi bus %d: %w", cfg.BusID, err)
	}
	d.ports[cfg.BusID] = p

	mode, err := spiMode(cfg.Mode)
	if err != nil {
		p.Close()
		delete(d.ports, cfg.BusID)
		return nil, err
	}

	c, err := p.Connect(physic.Frequency(cfg.Rate)*physic.Hertz, mode, 8)
	if err != nil {
		p.Close()
		delete(d.ports, cfg.BusID)
		return nil, fmt.Errorf("rpi: connect spi bus %d: %w", cfg.BusID, err)
	}
	return c, nil
}

// Transfer performs a full-duplex transfer over a handle from ConfigureBus.
func (d *SPIDriver) Transfer(busHandle interface{}, txData, rxData []byte) error {
	c, ok := busHandle.(spi.Conn)
	if !ok {
		return fmt.Errorf("rpi: invalid SPI bus handle %T", busHandle)
	}
	if lim, ok := c.(conn.Limits); ok && len(txData) > lim.MaxTxSize() {
		return fmt.Errorf("rpi: transfer of %d bytes exceeds bus max %d", len(txData), lim.MaxTxSize())
	}
	return c.Tx(txData, rxData)
}

// GetBusInfo reports the SPI0 chip-selects this driver knows how to open.
func (d *SPIDriver) GetBusInfo() map[core.SPIBusID]string {
	return map[core.SPIBusID]string{
		0: "SPI0.0 (CE0)",
		1: "SPI0.1 (CE1)",
	}
}

// Close releases every opened port.
func (d *SPIDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var firstErr error
	for id, p := range d.ports {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(d.ports, id)
	}
	return firstErr
}

func spiMode(m core.SPIMode) (spi.Mode, error) {
	switch m {
	case 0:
		return spi.Mode0, nil
	case 1:
		return spi.Mode1, nil
	case 2:
		return spi.Mode2, nil
	case 3:
		return spi.Mode3, nil
	default:
		return 0, fmt.Errorf("rpi: invalid SPI mode %d", m)
	}
}
