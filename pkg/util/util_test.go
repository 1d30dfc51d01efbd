package util

import (
	"math"
	"testing"
)

func TestCompanion(t *testing.T) {
	tests := []struct {
		method    IntegrationMethod
		geq, ieq  float64
		wantOrder int
	}{
		{BackwardEulerMethod, 1e-3, 2e-3, 1},
		{TrapezoidalMethod, 2e-3, 4e-3 + 5e-4, 2},
	}
	for _, tt := range tests {
		geq, ieq := Companion(tt.method, 1e-6, 1e-3, 2, 5e-4)
		if math.Abs(geq-tt.geq) > 1e-15 || math.Abs(ieq-tt.ieq) > 1e-15 {
			t.Errorf("%s: geq, ieq = %g, %g; want %g, %g", tt.method, geq, ieq, tt.geq, tt.ieq)
		}
		if tt.method.Order() != tt.wantOrder {
			t.Errorf("%s: order = %d", tt.method, tt.method.Order())
		}
	}
}

func TestFormatValueFactor(t *testing.T) {
	tests := []struct {
		value float64
		unit  string
		want  string
	}{
		{0, "V", "0.000 V"},
		{4.7e-3, "V", "4.700 mV"},
		{-2.2e3, "Ohm", "-2.200 kOhm"},
		{1.5e-16, "A", "1.500e-16 A"},
	}
	for _, tt := range tests {
		if got := FormatValueFactor(tt.value, tt.unit); got != tt.want {
			t.Errorf("FormatValueFactor(%g) = %q, want %q", tt.value, got, tt.want)
		}
	}
	if got := FormatFrequency(159.155); got != "159.155 Hz " {
		t.Errorf("FormatFrequency = %q", got)
	}
}

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 3) != 3 || Clamp(-1, 0, 3) != 0 || Clamp(2.5, 0.0, 3.0) != 2.5 {
		t.Error("clamp out of range")
	}
}
