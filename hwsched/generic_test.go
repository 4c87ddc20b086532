package hwsched

import (
	"testing"
	"time"

	"printipi/core"
	"printipi/planner"
)

type fakeGPIO struct {
	levels map[core.GPIOPin]bool
}

func newFakeGPIO() *fakeGPIO { return &fakeGPIO{levels: make(map[core.GPIOPin]bool)} }

func (f *fakeGPIO) ConfigureOutput(pin core.GPIOPin) error         { return nil }
func (f *fakeGPIO) ConfigureInputPullUp(pin core.GPIOPin) error    { return nil }
func (f *fakeGPIO) ConfigureInputPullDown(pin core.GPIOPin) error  { return nil }
func (f *fakeGPIO) SetPin(pin core.GPIOPin, value bool) error {
	f.levels[pin] = value
	return nil
}
func (f *fakeGPIO) GetPin(pin core.GPIOPin) (bool, error) { return f.levels[pin], nil }
func (f *fakeGPIO) ReadPin(pin core.GPIOPin) bool         { return f.levels[pin] }

func TestGenericSchedulerQueueSetsPinImmediatelyWhenPast(t *testing.T) {
	gpio := newFakeGPIO()
	s := NewGenericScheduler(gpio)
	s.now = time.Now
	s.sleep = func(time.Duration) {}

	past := float64(time.Now().Add(-time.Hour).UnixNano()) / 1e9
	if err := s.Queue(planner.OutputEvent{Pin: 7, Level: planner.High, TAbs: past}); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if !gpio.levels[core.GPIOPin(7)] {
		t.Error("expected pin 7 to be set high")
	}
}

func TestGenericSchedulerQueueLow(t *testing.T) {
	gpio := newFakeGPIO()
	gpio.levels[core.GPIOPin(3)] = true
	s := NewGenericScheduler(gpio)
	s.sleep = func(time.Duration) {}

	past := float64(time.Now().Add(-time.Hour).UnixNano()) / 1e9
	if err := s.Queue(planner.OutputEvent{Pin: 3, Level: planner.Low, TAbs: past}); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if gpio.levels[core.GPIOPin(3)] {
		t.Error("expected pin 3 to be cleared")
	}
}

func TestGenericSchedulerOnIdleCpuNeverWantsMore(t *testing.T) {
	s := NewGenericScheduler(newFakeGPIO())
	if s.OnIdleCpu(IdleWide) {
		t.Error("generic scheduler should never request more idle time")
	}
}
