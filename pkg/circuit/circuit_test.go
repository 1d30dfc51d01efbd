package circuit

import (
	"testing"

	"github.com/edp1096/mna-spice/pkg/device"
	"github.com/edp1096/mna-spice/pkg/matrix"
	"github.com/pkg/errors"
)

func TestBuilderNodeOrder(t *testing.T) {
	ckt, err := NewBuilder("order").
		Add(
			device.NewResistor("R1", []string{"b", "a"}, 1e3),
			device.NewResistor("R2", []string{"a", "gnd"}, 1e3),
			device.NewResistor("R3", []string{"c", "0"}, 1e3),
		).
		Build()
	if err != nil {
		t.Fatal(err)
	}

	if n := ckt.GetNumNodes(); n != 3 {
		t.Fatalf("nodes = %d, want 3", n)
	}
	for name, want := range map[string]int{"b": 1, "a": 2, "c": 3, "0": 0, "gnd": 0} {
		if got, ok := ckt.NodeIndex(name); !ok || got != want {
			t.Errorf("NodeIndex(%s) = %d, %v; want %d", name, got, ok, want)
		}
	}
	r2, idx, ok := ckt.Device("R2")
	if !ok || idx != 1 {
		t.Fatalf("Device(R2) = %v, %d, %v", r2, idx, ok)
	}
	if nodes := r2.GetNodes(); nodes[0] != 2 || nodes[1] != 0 {
		t.Errorf("R2 nodes = %v, want [2 0]", nodes)
	}
}

func TestBuilderRejectsDuplicates(t *testing.T) {
	_, err := NewBuilder("dup").
		Add(device.NewResistor("R1", []string{"a", "0"}, 1), device.NewResistor("R1", []string{"a", "0"}, 2)).
		Build()
	if err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestBuilderRejectsSharedDevice(t *testing.T) {
	r := device.NewResistor("R1", []string{"a", "b"}, 1e3)
	first, err := NewBuilder("first").Add(r).Build()
	if err != nil {
		t.Fatal(err)
	}

	_, err = NewBuilder("second").
		Add(device.NewResistor("R0", []string{"x", "0"}, 1), r).
		Build()
	if !errors.Is(err, device.ErrDeviceInUse) {
		t.Fatalf("err = %v, want ErrDeviceInUse", err)
	}
	dev, _, _ := first.Device("R1")
	if nodes := dev.GetNodes(); nodes[0] != 1 || nodes[1] != 2 {
		t.Errorf("first circuit nodes = %v, want [1 2]", nodes)
	}
}

func TestLayoutAuxOrder(t *testing.T) {
	ckt, err := NewBuilder("aux").
		Add(
			device.NewCCCS("F1", []string{"o", "0"}, "V2", 2),
			device.NewDCVoltageSource("V1", []string{"a", "0"}, 1),
			device.NewResistor("R1", []string{"a", "b"}, 1e3),
			device.NewInductor("L1", []string{"b", "0"}, 1e-3),
			device.NewDCVoltageSource("V2", []string{"o", "c"}, 0),
			device.NewResistor("R2", []string{"c", "0"}, 1e3),
		).
		Build()
	if err != nil {
		t.Fatal(err)
	}

	l, err := NewLayout(ckt)
	if err != nil {
		t.Fatal(err)
	}
	// Nodes o, a, b, c then I(V1), I(L1), I(V2).
	if l.NumNodes != 4 || l.Size != 7 {
		t.Fatalf("NumNodes, Size = %d, %d; want 4, 7", l.NumNodes, l.Size)
	}
	want := []string{"V(o)", "V(a)", "V(b)", "V(c)", "I(V1)", "I(L1)", "I(V2)"}
	for i, name := range l.Names() {
		if name != want[i] {
			t.Errorf("unknown %d = %s, want %s", i+1, name, want[i])
		}
	}
	if l.Slots[0].Control != 7 {
		t.Errorf("F1 control = %d, want 7", l.Slots[0].Control)
	}
	if l.Slots[3].Branch != 6 {
		t.Errorf("L1 branch = %d, want 6", l.Slots[3].Branch)
	}
	if !l.IsStateRow(6) || l.IsStateRow(5) || !l.IsStateRow(1) {
		t.Errorf("state rows wrong: %v", l.stateRows)
	}
	if idx, ok := l.Index("I(V2)"); !ok || idx != 7 {
		t.Errorf("Index(I(V2)) = %d, %v", idx, ok)
	}
}

func TestLayoutRejectsInvalidDevices(t *testing.T) {
	tests := []struct {
		name string
		dev  device.Device
	}{
		{"zero resistance", device.NewResistor("R9", []string{"a", "0"}, 0)},
		{"unknown control", device.NewCCVS("H1", []string{"a", "0"}, "Vx", 10)},
		{"control without branch", device.NewCCCS("F1", []string{"a", "0"}, "R1", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ckt, err := NewBuilder("bad").
				Add(device.NewResistor("R1", []string{"a", "0"}, 1e3), tt.dev).
				Build()
			if err != nil {
				t.Fatal(err)
			}
			_, err = NewLayout(ckt)
			var ipe *device.InvalidParameterError
			if !errors.As(err, &ipe) {
				t.Fatalf("NewLayout() = %v, want InvalidParameterError", err)
			}
			if ipe.Device != tt.dev.GetName() {
				t.Errorf("device = %s, want %s", ipe.Device, tt.dev.GetName())
			}
		})
	}
}

func TestMNALoad(t *testing.T) {
	ckt, err := NewBuilder("divider").
		Add(
			device.NewDCVoltageSource("V1", []string{"in", "0"}, 1),
			device.NewResistor("R1", []string{"in", "mid"}, 1e3),
			device.NewResistor("R2", []string{"mid", "0"}, 2e3),
		).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	l, err := NewLayout(ckt)
	if err != nil {
		t.Fatal(err)
	}

	m := NewMNA(ckt, l, matrix.NewSolver(matrix.DenseKind, l.Size, 0), false)
	defer m.Close()

	status := device.NewCircuitStatus(device.OperatingPointAnalysis)
	status.State = device.NewState(ckt.GetDevices(), l.Size)
	for pass := 0; pass < 2; pass++ {
		if err := m.Load(status, 1e-3); err != nil {
			t.Fatal(err)
		}
		sys := m.System()
		if got := real(sys.At(2, 2)); got != 1e-3+0.5e-3+1e-3 {
			t.Errorf("pass %d: G(mid,mid) = %g", pass, got)
		}
		if got := real(sys.At(3, 3)); got != 0 {
			t.Errorf("pass %d: shunt leaked into branch row: %g", pass, got)
		}
	}

	if err := m.Load(status, 0); err != nil {
		t.Fatal(err)
	}
	x, err := m.Solve()
	if err != nil {
		t.Fatal(err)
	}
	if d := x[2] - 2.0/3.0; d > 1e-12 || d < -1e-12 {
		t.Errorf("V(mid) = %g, want 2/3", x[2])
	}
}
