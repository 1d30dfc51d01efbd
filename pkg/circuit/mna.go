package circuit

import (
	"github.com/edp1096/mna-spice/pkg/device"
	"github.com/edp1096/mna-spice/pkg/matrix"
	"github.com/pkg/errors"
)

// MNA assembles and solves the system of one run. It owns its System and
// solver, so separate runs never share buffers.
type MNA struct {
	ckt    *Circuit
	layout *Layout
	sys    *matrix.System
	solver matrix.Solver
}

func NewMNA(ckt *Circuit, layout *Layout, solver matrix.Solver, isComplex bool) *MNA {
	return &MNA{
		ckt:    ckt,
		layout: layout,
		sys:    matrix.NewSystem(layout.Size, isComplex),
		solver: solver,
	}
}

// Load clears the system and stamps every device at status. gshunt > 0
// adds a conductance from every node to ground.
func (m *MNA) Load(status *device.CircuitStatus, gshunt float64) error {
	m.sys.Reset()
	for i, dev := range m.ckt.devices {
		if err := dev.Stamp(m.sys, status, m.layout.Slots[i]); err != nil {
			return errors.Wrapf(err, "stamping device %s", dev.GetName())
		}
	}
	if gshunt > 0 {
		m.sys.AddDiagonal(1, m.layout.NumNodes, gshunt)
	}
	return nil
}

func (m *MNA) Solve() ([]float64, error) {
	return m.solver.Solve(m.sys)
}

func (m *MNA) SolveComplex() ([]complex128, error) {
	return m.solver.SolveComplex(m.sys)
}

func (m *MNA) System() *matrix.System { return m.sys }

func (m *MNA) Layout() *Layout { return m.layout }

func (m *MNA) Circuit() *Circuit { return m.ckt }

// Update hands the accepted solution in status.X to time-dependent devices.
func (m *MNA) Update(status *device.CircuitStatus) {
	for i, dev := range m.ckt.devices {
		if td, ok := dev.(device.TimeDependent); ok {
			td.UpdateState(status, m.layout.Slots[i])
		}
	}
}

// Linearize freezes small-signal parameters of nonlinear devices at status.X.
func (m *MNA) Linearize(status *device.CircuitStatus) {
	for i, dev := range m.ckt.devices {
		if nl, ok := dev.(device.NonLinear); ok {
			nl.Linearize(status, m.layout.Slots[i])
		}
	}
}

func (m *MNA) Close() {
	if m.solver != nil {
		m.solver.Close()
	}
}
