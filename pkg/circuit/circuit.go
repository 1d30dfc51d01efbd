package circuit

import (
	"fmt"
	"slices"

	"github.com/edp1096/mna-spice/pkg/device"
	"github.com/pkg/errors"
)

// Circuit is an elaborated network. It is read-only once built, so one
// Circuit may back any number of concurrent runs.
type Circuit struct {
	name      string
	nodeMap   map[string]int
	nodeNames []string // index 0 is ground
	devices   []device.Device
	deviceMap map[string]int
	analyses  []Command
}

// Builder collects nodes, devices and analysis commands. Nodes get indices
// in the order they are first referenced; "0" and "gnd" are ground.
type Builder struct {
	ckt  *Circuit
	errs []error
}

func NewBuilder(name string) *Builder {
	return &Builder{
		ckt: &Circuit{
			name:      name,
			nodeMap:   map[string]int{"0": 0, "gnd": 0},
			nodeNames: []string{"0"},
			deviceMap: make(map[string]int),
		},
	}
}

// Node returns the index of name, declaring it if new.
func (b *Builder) Node(name string) int {
	if idx, ok := b.ckt.nodeMap[name]; ok {
		return idx
	}
	idx := len(b.ckt.nodeNames)
	b.ckt.nodeMap[name] = idx
	b.ckt.nodeNames = append(b.ckt.nodeNames, name)
	return idx
}

// Add assigns node indices to devs and appends them in order. A device
// belongs to a single circuit; adding it to a second builder is an error.
func (b *Builder) Add(devs ...device.Device) *Builder {
	for _, dev := range devs {
		name := dev.GetName()
		if name == "" {
			b.errs = append(b.errs, errors.New("device with empty name"))
			continue
		}
		if _, dup := b.ckt.deviceMap[name]; dup {
			b.errs = append(b.errs, errors.Errorf("duplicate device name %s", name))
			continue
		}

		nodeNames := dev.GetNodeNames()
		nodes := make([]int, len(nodeNames))
		for i, nodeName := range nodeNames {
			nodes[i] = b.Node(nodeName)
		}
		if err := dev.SetNodes(nodes); err != nil {
			b.errs = append(b.errs, err)
			continue
		}

		b.ckt.deviceMap[name] = len(b.ckt.devices)
		b.ckt.devices = append(b.ckt.devices, dev)
	}
	return b
}

// Analyze appends analysis commands, run in order by analysis.RunAll.
func (b *Builder) Analyze(cmds ...Command) *Builder {
	b.ckt.analyses = append(b.ckt.analyses, cmds...)
	return b
}

// Build returns the finished circuit. Device parameters are validated when
// a run lays the circuit out, not here.
func (b *Builder) Build() (*Circuit, error) {
	if len(b.errs) > 0 {
		return nil, errors.Wrap(b.errs[0], "building circuit")
	}
	if len(b.ckt.nodeNames) < 2 {
		return nil, errors.New("building circuit: no nodes besides ground")
	}
	ckt := b.ckt
	b.ckt = nil
	return ckt, nil
}

func (c *Circuit) Name() string {
	return c.name
}

// GetNumNodes returns the node count excluding ground.
func (c *Circuit) GetNumNodes() int {
	return len(c.nodeNames) - 1
}

func (c *Circuit) NodeName(idx int) string {
	if idx < 0 || idx >= len(c.nodeNames) {
		return fmt.Sprintf("#%d", idx)
	}
	return c.nodeNames[idx]
}

func (c *Circuit) NodeIndex(name string) (int, bool) {
	idx, ok := c.nodeMap[name]
	return idx, ok
}

func (c *Circuit) GetNodeMap() map[string]int {
	m := make(map[string]int, len(c.nodeNames))
	for i, name := range c.nodeNames[1:] {
		m[name] = i + 1
	}
	return m
}

func (c *Circuit) GetDevices() []device.Device {
	return slices.Clone(c.devices)
}

// Device looks a device up by name and returns its ordinal.
func (c *Circuit) Device(name string) (device.Device, int, bool) {
	idx, ok := c.deviceMap[name]
	if !ok {
		return nil, -1, false
	}
	return c.devices[idx], idx, true
}

func (c *Circuit) Analyses() []Command {
	return slices.Clone(c.analyses)
}

// IsLinear reports whether no device needs Newton iteration.
func (c *Circuit) IsLinear() bool {
	for _, dev := range c.devices {
		if _, ok := dev.(device.NonLinear); ok {
			return false
		}
	}
	return true
}
