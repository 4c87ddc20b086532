package rpi

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"printipi/core"
)

// GPIODriver implements core.GPIODriver over periph.io's pin registry, the
// same package seedhammer's input driver uses to read its joystick GPIOs.
// It backs the endstop reads in core/endstop.go and the digital_write
// fallback scheduler in hwsched/generic.go; the DMA-paced output path in
// this package drives GPSET/GPCLR directly instead, since it needs
// hardware timing periph's Out() calls can't provide.
type GPIODriver struct {
	mu   sync.Mutex
	pins map[core.GPIOPin]gpio.PinIO
}

// NewGPIODriver initializes periph's host drivers and returns a
// GPIODriver ready to register with core.SetGPIODriver.
func NewGPIODriver() (*GPIODriver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("rpi: periph host init: %w", err)
	}
	return &GPIODriver{pins: make(map[core.GPIOPin]gpio.PinIO)}, nil
}

func (d *GPIODriver) pin(p core.GPIOPin) (gpio.PinIO, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pin, ok := d.pins[p]; ok {
		return pin, nil
	}
	pin := gpioreg.ByName(fmt.Sprintf("GPIO%d", p))
	if pin == nil {
		return nil, fmt.Errorf("rpi: no such GPIO pin %d", p)
	}
	d.pins[p] = pin
	return pin, nil
}

func (d *GPIODriver) ConfigureOutput(p core.GPIOPin) error {
	pin, err := d.pin(p)
	if err != nil {
		return err
	}
	return pin.Out(gpio.Low)
}

func (d *GPIODriver) ConfigureInputPullUp(p core.GPIOPin) error {
	pin, err := d.pin(p)
	if err != nil {
		return err
	}
	return pin.In(gpio.PullUp, gpio.NoEdge)
}

func (d *GPIODriver) ConfigureInputPullDown(p core.GPIOPin) error {
	pin, err := d.pin(p)
	if err != nil {
		return err
	}
	return pin.In(gpio.PullDown, gpio.NoEdge)
}

func (d *GPIODriver) SetPin(p core.GPIOPin, value bool) error {
	pin, err := d.pin(p)
	if err != nil {
		return err
	}
	level := gpio.Low
	if value {
		level = gpio.High
	}
	return pin.Out(level)
}

func (d *GPIODriver) GetPin(p core.GPIOPin) (bool, error) {
	pin, err := d.pin(p)
	if err != nil {
		return false, err
	}
	return pin.Read() == gpio.High, nil
}

func (d *GPIODriver) ReadPin(p core.GPIOPin) bool {
	v, _ := d.GetPin(p)
	return v
}
