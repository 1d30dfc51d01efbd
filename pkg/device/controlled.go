package device

import (
	"github.com/edp1096/mna-spice/pkg/matrix"
	"github.com/pkg/errors"
)

// Voltage-controlled sources take nodes out+, out-, ctrl+, ctrl-.
// Current-controlled sources take nodes out+, out- and the name of a
// branch-owning device whose current controls them.

// VCVS enforces V(out+) - V(out-) = gain * (V(ctrl+) - V(ctrl-)).
type VCVS struct {
	BaseDevice
}

// VCCS drives gm * (V(ctrl+) - V(ctrl-)) from out+ through itself to out-.
type VCCS struct {
	BaseDevice
}

// CCCS drives gain * I(control) from out+ through itself to out-.
type CCCS struct {
	BaseDevice
	Control string
}

// CCVS enforces V(out+) - V(out-) = r * I(control).
type CCVS struct {
	BaseDevice
	Control string
}

var (
	_ BranchDevice     = (*VCVS)(nil)
	_ BranchDevice     = (*CCVS)(nil)
	_ ControlledDevice = (*CCCS)(nil)
	_ ControlledDevice = (*CCVS)(nil)
)

func NewVCVS(name string, nodeNames []string, gain float64) *VCVS {
	return &VCVS{BaseDevice: newBaseDevice(name, nodeNames, gain)}
}

func NewVCCS(name string, nodeNames []string, gm float64) *VCCS {
	return &VCCS{BaseDevice: newBaseDevice(name, nodeNames, gm)}
}

func NewCCCS(name string, nodeNames []string, control string, gain float64) *CCCS {
	return &CCCS{BaseDevice: newBaseDevice(name, nodeNames, gain), Control: control}
}

func NewCCVS(name string, nodeNames []string, control string, r float64) *CCVS {
	return &CCVS{BaseDevice: newBaseDevice(name, nodeNames, r), Control: control}
}

func (e *VCVS) GetType() string { return "E" }
func (g *VCCS) GetType() string { return "G" }
func (f *CCCS) GetType() string { return "F" }
func (h *CCVS) GetType() string { return "H" }

func (e *VCVS) branch() {}
func (h *CCVS) branch() {}

func (f *CCCS) ControlSource() string { return f.Control }
func (h *CCVS) ControlSource() string { return h.Control }

func (e *VCVS) Validate() error {
	if err := e.checkNodes(4); err != nil {
		return err
	}
	return finite(e.Name, "gain", e.Value)
}

func (g *VCCS) Validate() error {
	if err := g.checkNodes(4); err != nil {
		return err
	}
	return finite(g.Name, "transconductance", g.Value)
}

func (f *CCCS) Validate() error {
	if err := f.checkNodes(2); err != nil {
		return err
	}
	if f.Control == "" {
		return &InvalidParameterError{Device: f.Name, Param: "control", Reason: "missing controlling source"}
	}
	return finite(f.Name, "gain", f.Value)
}

func (h *CCVS) Validate() error {
	if err := h.checkNodes(2); err != nil {
		return err
	}
	if h.Control == "" {
		return &InvalidParameterError{Device: h.Name, Param: "control", Reason: "missing controlling source"}
	}
	return finite(h.Name, "transresistance", h.Value)
}

func (e *VCVS) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus, at Slot) error {
	b := at.Branch
	stampBranch(matrix, e.Nodes[0], e.Nodes[1], b)
	matrix.AddElement(b, e.Nodes[2], -e.Value)
	matrix.AddElement(b, e.Nodes[3], e.Value)
	return nil
}

func (g *VCCS) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus, at Slot) error {
	stampTransconductance(matrix, g.Nodes[0], g.Nodes[1], g.Nodes[2], g.Nodes[3], g.Value)
	return nil
}

func (f *CCCS) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus, at Slot) error {
	if at.Control == 0 {
		return errors.Errorf("cccs %s: control %s not resolved", f.Name, f.Control)
	}
	matrix.AddElement(f.Nodes[0], at.Control, f.Value)
	matrix.AddElement(f.Nodes[1], at.Control, -f.Value)
	return nil
}

func (h *CCVS) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus, at Slot) error {
	if at.Control == 0 {
		return errors.Errorf("ccvs %s: control %s not resolved", h.Name, h.Control)
	}
	b := at.Branch
	stampBranch(matrix, h.Nodes[0], h.Nodes[1], b)
	matrix.AddElement(b, at.Control, -h.Value)
	return nil
}
