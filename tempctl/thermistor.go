package tempctl

import "math"

// Thermistor converts a raw ADC sample into a temperature in Celsius
// using the beta equation for an NTC thermistor in a fixed voltage
// divider against a known resistor.
//
// Grounded on original_source's iodrivers/rcthermistor.h: that file
// estimates the thermistor's resistance from how long an RC network takes
// to discharge past a digital pin's switching threshold (the Pi has no
// ADC pins), then applies the same beta-equation temperatureFromR this
// type uses. This port targets a platform with a real ADC (core/adc_hal.go
// already models one), so resistance comes directly from the ADC ratio
// instead of an RC-discharge timing estimate; the temperature math below
// is unchanged from the original.
type Thermistor struct {
	SeriesOhms float64 // fixed resistor between Vcc and the ADC tap
	T0Kelvin   float64 // reference temperature for R0 (typically 25C)
	R0Ohms     float64 // thermistor resistance at T0
	Beta       float64 // thermistor beta value
	ADCMax     float64 // full-scale ADC reading (e.g. 65535 for 16-bit)
}

// DefaultThermistor returns parameters for a common 100k NTC, beta 3950,
// the typical RepRap "Semitec 104GT-2" style thermistor.
func DefaultThermistor() Thermistor {
	return Thermistor{
		SeriesOhms: 4700,
		T0Kelvin:   CToK(25),
		R0Ohms:     100000,
		Beta:       3950,
		ADCMax:     65535,
	}
}

// Temperature converts a raw ADC sample (thermistor between the tap and
// ground, series resistor between Vcc and the tap) into Celsius.
func (t Thermistor) Temperature(adcValue uint16) float64 {
	ratio := float64(adcValue) / t.ADCMax
	if ratio <= 0 {
		ratio = 1e-6
	}
	if ratio >= 1 {
		ratio = 1 - 1e-6
	}
	// Vout/Vcc = Rt/(Rs+Rt)  =>  Rt = Rs * ratio/(1-ratio)
	rt := t.SeriesOhms * ratio / (1 - ratio)
	k := 1 / (1/t.T0Kelvin + math.Log(rt/t.R0Ohms)/t.Beta)
	return KToC(k)
}

// CToK converts Celsius to Kelvin.
func CToK(c float64) float64 { return c + 273.15 }

// KToC converts Kelvin to Celsius.
func KToC(k float64) float64 { return k - 273.15 }
