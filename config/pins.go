package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseGPIOPin parses a config pin name like "gpio17" into its numeric
// BCM GPIO number, the naming convention DefaultCartesianConfig uses.
func ParseGPIOPin(name string) (uint32, error) {
	n, ok := strings.CutPrefix(strings.ToLower(name), "gpio")
	if !ok {
		return 0, fmt.Errorf("pin %q: expected a \"gpioN\" name", name)
	}
	v, err := strconv.ParseUint(n, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("pin %q: %w", name, err)
	}
	return uint32(v), nil
}

// ParseADCPin parses a config sensor pin name like "ADC0" into its
// numeric ADC channel.
func ParseADCPin(name string) (uint32, error) {
	n, ok := strings.CutPrefix(strings.ToUpper(name), "ADC")
	if !ok {
		return 0, fmt.Errorf("sensor pin %q: expected an \"ADCN\" name", name)
	}
	v, err := strconv.ParseUint(n, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("sensor pin %q: %w", name, err)
	}
	return uint32(v), nil
}
