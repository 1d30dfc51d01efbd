package util

import (
	"fmt"
	"math"
)

var prefixes = []struct {
	scale  float64
	prefix string
}{
	{1e9, "G"},
	{1e6, "M"},
	{1e3, "k"},
	{1, ""},
	{1e-3, "m"},
	{1e-6, "u"},
	{1e-9, "n"},
	{1e-12, "p"},
	{1e-15, "f"},
}

// FormatValueFactor prints value with an engineering prefix, e.g. "4.700 mV".
func FormatValueFactor(value float64, unit string) string {
	absValue := math.Abs(value)
	if absValue == 0 {
		return fmt.Sprintf("%.3f %s", value, unit)
	}
	for _, p := range prefixes {
		if absValue >= p.scale {
			return fmt.Sprintf("%.3f %s%s", value/p.scale, p.prefix, unit)
		}
	}
	return fmt.Sprintf("%.3e %s", value, unit)
}

func FormatFrequency(freq float64) string {
	switch {
	case freq >= 1e9:
		return fmt.Sprintf("%7.3f GHz", freq/1e9)
	case freq >= 1e6:
		return fmt.Sprintf("%7.3f MHz", freq/1e6)
	case freq >= 1e3:
		return fmt.Sprintf("%7.3f kHz", freq/1e3)
	default:
		return fmt.Sprintf("%7.3f Hz ", freq)
	}
}

// FormatDecibelPhase renders an AC point as "V(out)= -3.01dB< -45.0deg".
func FormatDecibelPhase(name string, db, phase float64) string {
	return fmt.Sprintf("%s=%7.2fdB<%6.1fdeg", name, db, phase)
}
