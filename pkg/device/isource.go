package device

import (
	"math"

	"github.com/edp1096/mna-spice/pkg/matrix"
)

// CurrentSource drives its current from node 1 through the source to node 2.
type CurrentSource struct {
	BaseDevice
	wave Waveform
	// AC params
	acMag   float64
	acPhase float64
}

var _ Source = (*CurrentSource)(nil)

func NewDCCurrentSource(name string, nodeNames []string, value float64) *CurrentSource {
	return &CurrentSource{
		BaseDevice: newBaseDevice(name, nodeNames, value),
		wave:       Waveform{Type: DC, DC: value},
	}
}

func NewSinCurrentSource(name string, nodeNames []string, offset, amplitude, freq, phase float64) *CurrentSource {
	return &CurrentSource{
		BaseDevice: newBaseDevice(name, nodeNames, offset),
		wave:       Waveform{Type: SIN, DC: offset, Amplitude: amplitude, Freq: freq, Phase: phase},
	}
}

func NewPulseCurrentSource(name string, nodeNames []string, i1, i2, delay, rise, fall, pWidth, period float64) *CurrentSource {
	return &CurrentSource{
		BaseDevice: newBaseDevice(name, nodeNames, i1),
		wave: Waveform{Type: PULSE, V1: i1, V2: i2, Delay: delay, Rise: rise, Fall: fall,
			PWidth: pWidth, Period: period},
	}
}

func NewPWLCurrentSource(name string, nodeNames []string, times []float64, values []float64) *CurrentSource {
	i := &CurrentSource{
		BaseDevice: newBaseDevice(name, nodeNames, 0),
		wave:       Waveform{Type: PWL, Times: times, Values: values},
	}
	if len(values) > 0 {
		i.Value = values[0]
	}
	return i
}

func NewACCurrentSource(name string, nodeNames []string, dcValue, acMag, acPhase float64) *CurrentSource {
	return NewDCCurrentSource(name, nodeNames, dcValue).SetAC(acMag, acPhase)
}

func (i *CurrentSource) SetAC(mag, phase float64) *CurrentSource {
	i.acMag, i.acPhase = mag, phase
	return i
}

func (i *CurrentSource) SourceValue(t, edge float64) float64 { return i.wave.At(t, edge) }

func (i *CurrentSource) Breakpoints(tstop, edge float64) []float64 { return i.wave.Breakpoints(tstop, edge) }

func (i *CurrentSource) GetType() string { return "I" }

func (i *CurrentSource) Validate() error {
	if err := i.checkNodes(2); err != nil {
		return err
	}
	if err := finite(i.Name, "ac magnitude", i.acMag); err != nil {
		return err
	}
	if err := finite(i.Name, "ac phase", i.acPhase); err != nil {
		return err
	}
	return i.wave.validate(i.Name)
}

func (i *CurrentSource) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus, at Slot) error {
	n1, n2 := i.Nodes[0], i.Nodes[1]

	if status.Mode == ACAnalysis {
		phaseRad := i.acPhase * math.Pi / 180.0
		re, im := i.acMag*math.Cos(phaseRad), i.acMag*math.Sin(phaseRad)
		matrix.AddComplexRHS(n1, -re, -im)
		matrix.AddComplexRHS(n2, re, im)
		return nil
	}

	stampCurrent(matrix, n1, n2, status.sourceValue(i, at))
	return nil
}
