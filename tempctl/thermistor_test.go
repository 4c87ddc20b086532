package tempctl

import "testing"

func TestThermistorTemperatureAtReferencePoint(t *testing.T) {
	therm := DefaultThermistor()
	// At R0 the thermistor reads T0 (25C) exactly: adc ratio where
	// Rt == R0ohms, i.e. ratio = R0/(Rs+R0).
	ratio := therm.R0Ohms / (therm.SeriesOhms + therm.R0Ohms)
	adc := uint16(ratio * therm.ADCMax)
	got := therm.Temperature(adc)
	if diff := got - 25; diff > 0.5 || diff < -0.5 {
		t.Errorf("Temperature at R0 = %.2fC, want ~25C", got)
	}
}

func TestThermistorMonotonicWithADCValue(t *testing.T) {
	therm := DefaultThermistor()
	low := therm.Temperature(1000)
	high := therm.Temperature(50000)
	if !(high < low) {
		t.Errorf("higher ADC ratio (more voltage across the NTC thermistor, so higher resistance) should read colder: low=%v high=%v", low, high)
	}
}

func TestThermistorClampsDegenerateADCValues(t *testing.T) {
	therm := DefaultThermistor()
	if v := therm.Temperature(0); v != v {
		t.Errorf("Temperature(0) produced NaN")
	}
	if v := therm.Temperature(65535); v != v {
		t.Errorf("Temperature(max) produced NaN")
	}
}

func TestCToKRoundTrip(t *testing.T) {
	if got := KToC(CToK(37)); got < 36.999 || got > 37.001 {
		t.Errorf("CToK/KToC round trip = %v, want 37", got)
	}
}
