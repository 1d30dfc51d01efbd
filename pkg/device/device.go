package device

import (
	"fmt"

	"github.com/edp1096/mna-spice/internal/consts"
	"github.com/edp1096/mna-spice/pkg/matrix"
	"github.com/edp1096/mna-spice/pkg/util"
	"github.com/pkg/errors"
)

// Device is the closed set of circuit elements. Node indices are assigned
// once when the device is added to a circuit; stamping never mutates the
// device, all per-run quantities live in the State carried by CircuitStatus.
type Device interface {
	GetName() string
	GetType() string
	GetNodeNames() []string
	GetNodes() []int
	// SetNodes binds the device to one circuit. A device already bound
	// fails with ErrDeviceInUse.
	SetNodes(nodes []int) error
	GetValue() float64
	Validate() error
	Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus, at Slot) error

	sealed()
}

type BaseDevice struct {
	Name      string
	Nodes     []int
	Value     float64
	NodeNames []string

	bound bool
}

type ModelParam struct {
	Type   string
	Name   string
	Params map[string]float64
}

// BranchDevice owns an auxiliary branch-current unknown.
type BranchDevice interface {
	Device
	branch()
}

// ControlledDevice reads the branch current of another device.
type ControlledDevice interface {
	Device
	ControlSource() string
}

// NonLinear devices freeze their small-signal parameters at the operating
// point in status.X for AC analysis.
type NonLinear interface {
	Device
	Linearize(status *CircuitStatus, at Slot)
}

// TimeDependent devices record companion history after an accepted step.
// status.X holds the accepted solution and status.State.Prev the previous one.
type TimeDependent interface {
	Device
	UpdateState(status *CircuitStatus, at Slot)
}

// Stateful devices reserve StateSize values in the per-run State.
type Stateful interface {
	StateSize() int
}

// Source is an independent voltage or current source. edge stands in for
// zero PULSE rise and fall times.
type Source interface {
	Device
	SourceValue(t, edge float64) float64
	Breakpoints(tstop, edge float64) []float64
}

type SourceType int

const (
	DC SourceType = iota
	SIN
	PULSE
	PWL
)

type AnalysisMode int

const (
	OperatingPointAnalysis AnalysisMode = iota
	TransientAnalysis
	ACAnalysis
)

// Slot locates a device inside an assembled system.
type Slot struct {
	Index   int // ordinal in the circuit's device list
	Branch  int // own auxiliary unknown, 0 when none
	Control int // controlling branch unknown for current-controlled sources
}

// Override forces an independent source to a fixed value, used by sweeps.
type Override struct {
	Device int
	Value  float64
}

type CircuitStatus struct {
	Mode        AnalysisMode
	X           []float64 // current estimate, X[0] is ground
	State       *State
	Time        float64
	TimeStep    float64
	Edge        float64 // transition time of PULSE edges given as zero
	Method      util.IntegrationMethod
	Omega       float64 // AC angular frequency (rad/s)
	SourceScale float64 // independent source factor for source stepping
	Gmin        float64 // conductance across nonlinear junctions
	Temp        float64
	Overrides   []Override

	// Limited counts junction voltages clamped during the last load; a
	// Newton iterate with clamped junctions is not converged.
	Limited int
}

func NewCircuitStatus(mode AnalysisMode) *CircuitStatus {
	return &CircuitStatus{
		Mode:        mode,
		SourceScale: 1,
		Temp:        consts.REFTEMP,
	}
}

func (s *CircuitStatus) voltage(n int) float64 {
	return nodeValue(s.X, n)
}

func (s *CircuitStatus) override(index int) (float64, bool) {
	for _, o := range s.Overrides {
		if o.Device == index {
			return o.Value, true
		}
	}
	return 0, false
}

func (s *CircuitStatus) sourceValue(src Source, at Slot) float64 {
	value, ok := s.override(at.Index)
	if !ok {
		value = src.SourceValue(s.Time, s.Edge)
	}
	return value * s.SourceScale
}

func nodeValue(x []float64, n int) float64 {
	if n <= 0 || n >= len(x) {
		return 0
	}
	return x[n]
}

func (d *BaseDevice) GetName() string {
	return d.Name
}

func (d *BaseDevice) GetNodes() []int {
	return d.Nodes
}

func (d *BaseDevice) GetNodeNames() []string {
	return d.NodeNames
}

func (d *BaseDevice) GetValue() float64 {
	return d.Value
}

func (d *BaseDevice) SetNodes(nodes []int) error {
	if d.bound {
		return errors.Wrapf(ErrDeviceInUse, "device %s", d.Name)
	}
	d.Nodes, d.bound = nodes, true
	return nil
}

func (d *BaseDevice) sealed() {}

func (d *BaseDevice) checkNodes(n int) error {
	if len(d.NodeNames) != n || len(d.Nodes) != n {
		return &InvalidParameterError{Device: d.Name, Param: "nodes", Value: float64(len(d.NodeNames)),
			Reason: fmt.Sprintf("expected %d terminals", n)}
	}
	return nil
}

func newBaseDevice(name string, nodeNames []string, value float64) BaseDevice {
	return BaseDevice{
		Name:      name,
		Nodes:     make([]int, len(nodeNames)),
		NodeNames: nodeNames,
		Value:     value,
	}
}
