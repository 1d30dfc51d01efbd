package circuit

import (
	"fmt"

	"github.com/edp1096/mna-spice/pkg/device"
	"github.com/pkg/errors"
)

// AuxVarTable numbers branch-current owners in first-seen order.
type AuxVarTable struct {
	ids    map[string]int
	owners []string
}

func NewAuxVarTable() *AuxVarTable {
	return &AuxVarTable{ids: make(map[string]int)}
}

// Allocate returns the ordinal of owner, assigning the next one if new.
func (t *AuxVarTable) Allocate(owner string) (id int, isNew bool) {
	if id, ok := t.ids[owner]; ok {
		return id, false
	}
	id = len(t.owners)
	t.ids[owner] = id
	t.owners = append(t.owners, owner)
	return id, true
}

func (t *AuxVarTable) Lookup(owner string) (int, bool) {
	id, ok := t.ids[owner]
	return id, ok
}

func (t *AuxVarTable) Len() int { return len(t.owners) }

func (t *AuxVarTable) Owners() []string { return t.owners }

// Layout fixes the unknown ordering of a circuit: node voltages 1..NumNodes,
// then one branch current per AuxVarTable entry.
type Layout struct {
	NumNodes int
	Size     int
	Aux      *AuxVarTable
	Slots    []device.Slot

	names     []string
	index     map[string]int
	stateRows []bool
	linear    bool
}

// NewLayout validates every device and assigns unknowns. Parameter errors
// come back as *device.InvalidParameterError.
func NewLayout(ckt *Circuit) (*Layout, error) {
	devices := ckt.devices
	l := &Layout{
		NumNodes: ckt.GetNumNodes(),
		Aux:      NewAuxVarTable(),
		Slots:    make([]device.Slot, len(devices)),
		linear:   ckt.IsLinear(),
	}

	for i, dev := range devices {
		if err := dev.Validate(); err != nil {
			return nil, errors.Wrapf(err, "circuit %s", ckt.name)
		}
		l.Slots[i].Index = i
		if _, ok := dev.(device.BranchDevice); ok {
			id, _ := l.Aux.Allocate(dev.GetName())
			l.Slots[i].Branch = l.NumNodes + 1 + id
		}
	}

	for i, dev := range devices {
		cd, ok := dev.(device.ControlledDevice)
		if !ok {
			continue
		}
		id, ok := l.Aux.Lookup(cd.ControlSource())
		if !ok {
			return nil, errors.Wrapf(&device.InvalidParameterError{
				Device: dev.GetName(),
				Param:  "control",
				Reason: fmt.Sprintf("%s does not own a branch current", cd.ControlSource()),
			}, "circuit %s", ckt.name)
		}
		l.Slots[i].Control = l.NumNodes + 1 + id
	}

	l.Size = l.NumNodes + l.Aux.Len()
	l.names = make([]string, l.Size+1)
	l.names[0] = "V(0)"
	l.index = make(map[string]int, l.Size)
	l.stateRows = make([]bool, l.Size+1)
	for i := 1; i <= l.NumNodes; i++ {
		l.names[i] = fmt.Sprintf("V(%s)", ckt.nodeNames[i])
		l.stateRows[i] = true
	}
	for id, owner := range l.Aux.Owners() {
		l.names[l.NumNodes+1+id] = fmt.Sprintf("I(%s)", owner)
	}
	for i, dev := range devices {
		if _, ok := dev.(*device.Inductor); ok {
			l.stateRows[l.Slots[i].Branch] = true
		}
	}
	for i, name := range l.names[1:] {
		l.index[name] = i + 1
	}

	return l, nil
}

// Names returns the unknown names in solution order, without ground.
func (l *Layout) Names() []string { return l.names[1:] }

func (l *Layout) Name(i int) string { return l.names[i] }

// Index resolves "V(node)" or "I(device)" to a solution index.
func (l *Layout) Index(name string) (int, bool) {
	i, ok := l.index[name]
	return i, ok
}

func (l *Layout) IsVoltage(i int) bool { return i >= 1 && i <= l.NumNodes }

// IsStateRow reports whether unknown i carries integrator state (a node
// voltage or an inductor current) and so takes part in error control.
func (l *Layout) IsStateRow(i int) bool { return l.stateRows[i] }

func (l *Layout) Linear() bool { return l.linear }
