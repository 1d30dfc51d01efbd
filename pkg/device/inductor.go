package device

import (
	"github.com/edp1096/mna-spice/pkg/matrix"
	"github.com/edp1096/mna-spice/pkg/util"
)

// Inductor carries its current as a branch unknown: a short at DC,
// V - jwL*I = 0 in AC and V = geq*I - veq in transient.
type Inductor struct {
	BaseDevice
}

var _ BranchDevice = (*Inductor)(nil)

func NewInductor(name string, nodeNames []string, value float64) *Inductor {
	return &Inductor{BaseDevice: newBaseDevice(name, nodeNames, value)}
}

func (l *Inductor) GetType() string { return "L" }

func (l *Inductor) branch() {}

func (l *Inductor) Validate() error {
	if err := l.checkNodes(2); err != nil {
		return err
	}
	return positive(l.Name, "inductance", l.Value)
}

func (l *Inductor) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus, at Slot) error {
	n1, n2 := l.Nodes[0], l.Nodes[1]
	b := at.Branch

	stampBranch(matrix, n1, n2, b)

	switch status.Mode {
	case ACAnalysis:
		matrix.AddComplexElement(b, b, 0, -status.Omega*l.Value)

	case TransientAnalysis:
		prev := status.State.Prev
		iPrev := nodeValue(prev, b)
		vPrev := nodeValue(prev, n1) - nodeValue(prev, n2)
		req, veq := util.Companion(status.Method, l.Value, status.TimeStep, iPrev, vPrev)
		matrix.AddElement(b, b, -req)
		matrix.AddRHS(b, -veq)
	}

	return nil
}
