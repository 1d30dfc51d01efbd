package device

import (
	"math"

	"github.com/edp1096/mna-spice/pkg/matrix"
)

type VoltageSource struct {
	BaseDevice
	wave Waveform
	// AC params
	acMag   float64
	acPhase float64
}

var (
	_ BranchDevice = (*VoltageSource)(nil)
	_ Source       = (*VoltageSource)(nil)
)

func NewDCVoltageSource(name string, nodeNames []string, value float64) *VoltageSource {
	return &VoltageSource{
		BaseDevice: newBaseDevice(name, nodeNames, value),
		wave:       Waveform{Type: DC, DC: value},
	}
}

func NewSinVoltageSource(name string, nodeNames []string, offset, amplitude, freq, phase float64) *VoltageSource {
	return &VoltageSource{
		BaseDevice: newBaseDevice(name, nodeNames, offset),
		wave:       Waveform{Type: SIN, DC: offset, Amplitude: amplitude, Freq: freq, Phase: phase},
	}
}

func NewPulseVoltageSource(name string, nodeNames []string, v1, v2, delay, rise, fall, pWidth, period float64) *VoltageSource {
	return &VoltageSource{
		BaseDevice: newBaseDevice(name, nodeNames, v1),
		wave: Waveform{Type: PULSE, V1: v1, V2: v2, Delay: delay, Rise: rise, Fall: fall,
			PWidth: pWidth, Period: period},
	}
}

func NewPWLVoltageSource(name string, nodeNames []string, times []float64, values []float64) *VoltageSource {
	v := &VoltageSource{
		BaseDevice: newBaseDevice(name, nodeNames, 0),
		wave:       Waveform{Type: PWL, Times: times, Values: values},
	}
	if len(values) > 0 {
		v.Value = values[0]
	}
	return v
}

func NewACVoltageSource(name string, nodeNames []string, dcValue, acMag, acPhase float64) *VoltageSource {
	return NewDCVoltageSource(name, nodeNames, dcValue).SetAC(acMag, acPhase)
}

// SetAC sets the small-signal magnitude and phase (degrees).
func (v *VoltageSource) SetAC(mag, phase float64) *VoltageSource {
	v.acMag, v.acPhase = mag, phase
	return v
}

func (v *VoltageSource) SourceValue(t, edge float64) float64 { return v.wave.At(t, edge) }

func (v *VoltageSource) Breakpoints(tstop, edge float64) []float64 { return v.wave.Breakpoints(tstop, edge) }

func (v *VoltageSource) GetType() string { return "V" }

func (v *VoltageSource) branch() {}

func (v *VoltageSource) Validate() error {
	if err := v.checkNodes(2); err != nil {
		return err
	}
	if err := finite(v.Name, "ac magnitude", v.acMag); err != nil {
		return err
	}
	if err := finite(v.Name, "ac phase", v.acPhase); err != nil {
		return err
	}
	return v.wave.validate(v.Name)
}

// Stamp enforces v1 - v2 = V through the branch row.
func (v *VoltageSource) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus, at Slot) error {
	n1, n2 := v.Nodes[0], v.Nodes[1]
	b := at.Branch

	stampBranch(matrix, n1, n2, b)

	if status.Mode == ACAnalysis {
		phaseRad := v.acPhase * math.Pi / 180.0
		matrix.AddComplexRHS(b, v.acMag*math.Cos(phaseRad), v.acMag*math.Sin(phaseRad))
		return nil
	}

	matrix.AddRHS(b, status.sourceValue(v, at))
	return nil
}
