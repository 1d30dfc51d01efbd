package device

import (
	"github.com/edp1096/mna-spice/pkg/matrix"
	"github.com/edp1096/mna-spice/pkg/util"
)

// Capacitor is open at DC, jwC in AC and a companion conductance with a
// history current source in transient. Its state slot keeps the current at
// the last accepted time point.
type Capacitor struct {
	BaseDevice
}

var (
	_ TimeDependent = (*Capacitor)(nil)
	_ Stateful      = (*Capacitor)(nil)
)

func NewCapacitor(name string, nodeNames []string, value float64) *Capacitor {
	return &Capacitor{BaseDevice: newBaseDevice(name, nodeNames, value)}
}

func (c *Capacitor) GetType() string { return "C" }

func (c *Capacitor) StateSize() int { return 1 }

func (c *Capacitor) Validate() error {
	if err := c.checkNodes(2); err != nil {
		return err
	}
	return positive(c.Name, "capacitance", c.Value)
}

func (c *Capacitor) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus, at Slot) error {
	n1, n2 := c.Nodes[0], c.Nodes[1]

	switch status.Mode {
	case ACAnalysis:
		stampAdmittance(matrix, n1, n2, 0, status.Omega*c.Value)

	case TransientAnalysis:
		geq, ieq := c.companion(status, at)
		stampConductance(matrix, n1, n2, geq)
		stampCurrent(matrix, n1, n2, -ieq)
	}

	return nil
}

func (c *Capacitor) companion(status *CircuitStatus, at Slot) (geq, ieq float64) {
	prev := status.State.Prev
	vPrev := nodeValue(prev, c.Nodes[0]) - nodeValue(prev, c.Nodes[1])
	iPrev := status.State.Slots(at)[0]
	return util.Companion(status.Method, c.Value, status.TimeStep, vPrev, iPrev)
}

func (c *Capacitor) UpdateState(status *CircuitStatus, at Slot) {
	geq, ieq := c.companion(status, at)
	v := status.voltage(c.Nodes[0]) - status.voltage(c.Nodes[1])
	status.State.Slots(at)[0] = geq*v - ieq
}
