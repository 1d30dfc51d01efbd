package device

import (
	"github.com/edp1096/mna-spice/internal/consts"
	"github.com/edp1096/mna-spice/pkg/matrix"
)

type Resistor struct {
	BaseDevice
	Tc1  float64
	Tc2  float64
	Tnom float64
}

func NewResistor(name string, nodeNames []string, value float64) *Resistor {
	return &Resistor{
		BaseDevice: newBaseDevice(name, nodeNames, value),
		Tnom:       consts.REFTEMP,
	}
}

func (r *Resistor) GetType() string { return "R" }

func (r *Resistor) Validate() error {
	if err := r.checkNodes(2); err != nil {
		return err
	}
	if err := finite(r.Name, "tc1", r.Tc1); err != nil {
		return err
	}
	if err := finite(r.Name, "tc2", r.Tc2); err != nil {
		return err
	}
	return positive(r.Name, "resistance", r.Value)
}

func (r *Resistor) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus, at Slot) error {
	value := r.temperatureAdjustedValue(status.Temp)
	if err := positive(r.Name, "resistance at temperature", value); err != nil {
		return err
	}
	// Same real stamp in every mode; a complex system takes it as the real part.
	stampConductance(matrix, r.Nodes[0], r.Nodes[1], 1.0/value)
	return nil
}

// Current returns the current through the resistor from node 1 to node 2
// for solution x.
func (r *Resistor) Current(x []float64, temp float64) float64 {
	return (nodeValue(x, r.Nodes[0]) - nodeValue(x, r.Nodes[1])) / r.temperatureAdjustedValue(temp)
}

func (r *Resistor) temperatureAdjustedValue(temp float64) float64 {
	if temp <= 0 {
		temp = consts.REFTEMP
	}
	dt := temp - r.Tnom
	factor := 1.0 + r.Tc1*dt + r.Tc2*dt*dt
	return r.Value * factor
}
