package tmcdriver

import (
	"encoding/binary"
	"testing"

	"printipi/core"
)

// fakeSPI records every register write so tests can inspect what Configure
// sent without real hardware, mirroring the teacher's mock-HAL test style
// (core/adc_test.go's setupMockADC).
type fakeSPI struct {
	writes map[uint8]uint32
}

func newFakeSPI() *fakeSPI {
	return &fakeSPI{writes: make(map[uint8]uint32)}
}

func (f *fakeSPI) ConfigureBus(cfg core.SPIConfig) (interface{}, error) {
	return "bus", nil
}

func (f *fakeSPI) Transfer(busHandle interface{}, tx, rx []byte) error {
	addr := tx[0] &^ core.TMC5240_WRITE_BIT
	if tx[0]&core.TMC5240_WRITE_BIT != 0 {
		f.writes[addr] = binary.BigEndian.Uint32(tx[1:])
	}
	copy(rx, tx)
	return nil
}

func (f *fakeSPI) GetBusInfo() map[core.SPIBusID]string {
	return map[core.SPIBusID]string{0: "fake"}
}

func TestConfigureWritesCurrentAndMicrostepRegisters(t *testing.T) {
	fake := newFakeSPI()
	core.SetSPIDriver(fake)

	drv, err := Open(Config{
		Bus:         0,
		Rate:        1_000_000,
		RunCurrent:  20,
		HoldCurrent: 8,
		HoldDelay:   5,
		Microsteps:  16,
		StealthChop: true,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := drv.Configure(); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	iholdIrun, ok := fake.writes[core.TMC5240_IHOLD_IRUN]
	if !ok {
		t.Fatal("IHOLD_IRUN was never written")
	}
	if got := uint8(iholdIrun); got != 8 {
		t.Errorf("IHOLD = %d, want 8", got)
	}
	if got := uint8(iholdIrun >> 8); got != 20 {
		t.Errorf("IRUN = %d, want 20", got)
	}
	if got := uint8(iholdIrun >> 16); got != 5 {
		t.Errorf("IHOLDDELAY = %d, want 5", got)
	}

	chopconf, ok := fake.writes[core.TMC5240_CHOPCONF]
	if !ok {
		t.Fatal("CHOPCONF was never written")
	}
	if mres := chopconf >> 24; mres != 4 {
		t.Errorf("CHOPCONF MRES = %d, want 4 (16 microsteps)", mres)
	}

	gconf, ok := fake.writes[core.TMC5240_GCONF]
	if !ok {
		t.Fatal("GCONF was never written")
	}
	if gconf&core.TMC5240_GCONF_EN_PWM_MODE == 0 {
		t.Error("GCONF should have StealthChop bit set")
	}
}

func TestMicrostepResolutionBitsRejectsUnsupportedCounts(t *testing.T) {
	if _, err := microstepResolutionBits(3); err == nil {
		t.Error("expected an error for an unsupported microstep count")
	}
}

func TestMicrostepResolutionBitsFullStep(t *testing.T) {
	bits, err := microstepResolutionBits(1)
	if err != nil {
		t.Fatalf("microstepResolutionBits(1): %v", err)
	}
	if bits != 8 {
		t.Errorf("full-step MRES = %d, want 8", bits)
	}
}
