package device

import (
	"math"
	"testing"

	"github.com/edp1096/mna-spice/internal/consts"
	"github.com/edp1096/mna-spice/pkg/matrix"
	"github.com/edp1096/mna-spice/pkg/util"
	"github.com/pkg/errors"
)

func place(d Device, nodes ...int) Device {
	d.SetNodes(nodes)
	return d
}

func newStatus(mode AnalysisMode, x []float64, devices ...Device) *CircuitStatus {
	status := NewCircuitStatus(mode)
	status.X = x
	status.State = NewState(devices, len(x)-1)
	return status
}

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestResistorStamp(t *testing.T) {
	r := place(NewResistor("R1", []string{"a", "0"}, 1e3), 1, 0)
	sys := matrix.NewSystem(1, false)
	if err := r.Stamp(sys, NewCircuitStatus(OperatingPointAnalysis), Slot{}); err != nil {
		t.Fatal(err)
	}
	if got := real(sys.At(1, 1)); got != 1e-3 {
		t.Errorf("G(1,1) = %g, want 1e-3", got)
	}
	if n := len(sys.Entries()); n != 1 {
		t.Errorf("ground produced %d entries, want 1", n)
	}
}

func TestResistorTemperature(t *testing.T) {
	r := NewResistor("R1", []string{"a", "b"}, 1e3)
	r.Tc1 = 1e-3
	if got := r.temperatureAdjustedValue(consts.REFTEMP + 10); !approx(got, 1010, 1e-12) {
		t.Errorf("R(T+10) = %g, want 1010", got)
	}
}

func TestValidateRejects(t *testing.T) {
	badMos := NewMosfet("M1", []string{"d", "g", "s", "b"}, "JFET", nil)
	badDiode := NewDiode("D1", []string{"a", "k"})
	badDiode.Is = 0
	gradedDiode := NewDiode("D2", []string{"a", "k"})
	gradedDiode.M = 1
	level2 := NewLevel2()
	level2.TOX = 0

	tests := []struct {
		name  string
		dev   Device
		param string
	}{
		{"zero resistance", NewResistor("R1", []string{"a", "b"}, 0), "resistance"},
		{"negative resistance", NewResistor("R2", []string{"a", "b"}, -5), "resistance"},
		{"nan capacitance", NewCapacitor("C1", []string{"a", "b"}, math.NaN()), "capacitance"},
		{"zero inductance", NewInductor("L1", []string{"a", "b"}, 0), "inductance"},
		{"diode is", badDiode, "is"},
		{"diode grading", gradedDiode, "m"},
		{"mos type", badMos, "type"},
		{"level2 oxide", NewMosfet("M2", []string{"d", "g", "s", "b"}, "NMOS", level2), "tox"},
		{"pwl order", NewPWLVoltageSource("V1", []string{"a", "0"}, []float64{0, 2, 1}, []float64{0, 1, 2}), "pwl time"},
		{"pwl length", NewPWLCurrentSource("I1", []string{"a", "0"}, []float64{0, 1}, []float64{0}), "pwl"},
		{"pulse period", NewPulseVoltageSource("V2", []string{"a", "0"}, 0, 1, 0, 1, 1, 1, 2), "period"},
		{"cccs control", NewCCCS("F1", []string{"a", "0"}, "", 2), "control"},
		{"terminals", NewVCVS("E1", []string{"a", "0"}, 2), "nodes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dev.Validate()
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("Validate() = %v, want ErrInvalidParameter", err)
			}
			var ipe *InvalidParameterError
			if !errors.As(err, &ipe) {
				t.Fatalf("Validate() = %T, want *InvalidParameterError", err)
			}
			if ipe.Device != tt.dev.GetName() || ipe.Param != tt.param {
				t.Errorf("got %s/%s, want %s/%s", ipe.Device, ipe.Param, tt.dev.GetName(), tt.param)
			}
		})
	}
}

func TestCapacitorCompanion(t *testing.T) {
	tests := []struct {
		method       util.IntegrationMethod
		wantG, wantI float64
	}{
		{util.BackwardEulerMethod, 1, 1},
		{util.TrapezoidalMethod, 2, 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.method.String(), func(t *testing.T) {
			c := place(NewCapacitor("C1", []string{"a", "0"}, 1e-6), 1, 0)
			status := newStatus(TransientAnalysis, []float64{0, 2}, c)
			status.TimeStep = 1e-6
			status.Method = tt.method
			status.State.Prev[1] = 1
			status.State.Slots(Slot{})[0] = 0.5

			sys := matrix.NewSystem(1, false)
			if err := c.Stamp(sys, status, Slot{}); err != nil {
				t.Fatal(err)
			}
			if got := real(sys.At(1, 1)); !approx(got, tt.wantG, 1e-12) {
				t.Errorf("geq = %g, want %g", got, tt.wantG)
			}
			if got := real(sys.RHSAt(1)); !approx(got, tt.wantI, 1e-12) {
				t.Errorf("ieq = %g, want %g", got, tt.wantI)
			}

			c.(TimeDependent).UpdateState(status, Slot{})
			if got, want := status.State.Slots(Slot{})[0], tt.wantG*2-tt.wantI; !approx(got, want, 1e-12) {
				t.Errorf("accepted current = %g, want %g", got, want)
			}
		})
	}
}

func TestCapacitorOpenAtDC(t *testing.T) {
	c := place(NewCapacitor("C1", []string{"a", "b"}, 1e-6), 1, 2)
	sys := matrix.NewSystem(2, false)
	if err := c.Stamp(sys, newStatus(OperatingPointAnalysis, make([]float64, 3), c), Slot{}); err != nil {
		t.Fatal(err)
	}
	if n := len(sys.Entries()); n != 0 {
		t.Errorf("DC stamp touched %d entries, want 0", n)
	}
}

func TestInductorStamp(t *testing.T) {
	l := place(NewInductor("L1", []string{"a", "0"}, 1e-3), 1, 0)
	at := Slot{Branch: 2}

	status := newStatus(OperatingPointAnalysis, make([]float64, 3), l)
	sys := matrix.NewSystem(2, false)
	if err := l.Stamp(sys, status, at); err != nil {
		t.Fatal(err)
	}
	if sys.At(2, 2) != 0 || real(sys.At(1, 2)) != 1 || real(sys.At(2, 1)) != 1 {
		t.Errorf("DC stamp is not a short through the branch")
	}

	status.Mode = TransientAnalysis
	status.TimeStep = 1e-6
	status.Method = util.BackwardEulerMethod
	status.State.Prev[2] = 0.01
	sys.Reset()
	if err := l.Stamp(sys, status, at); err != nil {
		t.Fatal(err)
	}
	if got := real(sys.At(2, 2)); !approx(got, -1000, 1e-12) {
		t.Errorf("branch diagonal = %g, want -1000", got)
	}
	if got := real(sys.RHSAt(2)); !approx(got, -10, 1e-12) {
		t.Errorf("branch rhs = %g, want -10", got)
	}

	status.Mode = ACAnalysis
	status.Omega = 1e3
	sys = matrix.NewSystem(2, true)
	if err := l.Stamp(sys, status, at); err != nil {
		t.Fatal(err)
	}
	if got := sys.At(2, 2); got != complex(0, -1) {
		t.Errorf("AC branch diagonal = %v, want -1i", got)
	}
}

func TestDiodeConductanceMatchesDerivative(t *testing.T) {
	d := NewDiode("D1", []string{"a", "0"})
	temp := consts.REFTEMP
	nvt := consts.ThermalVoltage(temp)

	for _, vd := range []float64{-1, 0, 0.3, 0.65, maxExpArg*nvt + 0.5} {
		_, gd := d.evaluate(vd, temp)
		h := 1e-7
		ip, _ := d.evaluate(vd+h, temp)
		im, _ := d.evaluate(vd-h, temp)
		if num := (ip - im) / (2 * h); !approx(gd, num, 1e-5) {
			t.Errorf("vd=%g: gd = %g, numeric %g", vd, gd, num)
		}
	}

	// Continuous across the linear extension.
	lo, _ := d.evaluate(maxExpArg*nvt-1e-9, temp)
	hi, _ := d.evaluate(maxExpArg*nvt+1e-9, temp)
	if !approx(lo, hi, 1e-6) {
		t.Errorf("discontinuity at extension: %g vs %g", lo, hi)
	}
}

func TestDiodeStampCompanion(t *testing.T) {
	d := place(NewDiode("D1", []string{"a", "0"}), 1, 0)
	status := newStatus(OperatingPointAnalysis, []float64{0, 0.6}, d)
	status.Gmin = 1e-12

	sys := matrix.NewSystem(1, false)
	if err := d.Stamp(sys, status, Slot{}); err != nil {
		t.Fatal(err)
	}
	id, gd := d.(*Diode).evaluate(0.6, status.Temp)
	g := gd + status.Gmin
	if got := real(sys.At(1, 1)); !approx(got, g, 1e-12) {
		t.Errorf("G = %g, want %g", got, g)
	}
	// G*v - rhs must reproduce the device current at the expansion point.
	if got := g*0.6 - real(sys.RHSAt(1)); !approx(got, id+status.Gmin*0.6, 1e-9) {
		t.Errorf("linearized current = %g, want %g", got, id)
	}

	d.(NonLinear).Linearize(status, Slot{})
	if got := status.State.Slots(Slot{})[0]; !approx(got, g, 1e-12) {
		t.Errorf("frozen conductance = %g, want %g", got, g)
	}
}

func TestLevel1Regions(t *testing.T) {
	p := NewLevel1()
	p.GAMMA, p.LAMBDA = 0, 0
	p.W, p.L = 100e-6, 10e-6 // beta = 2e-4

	if op := p.Evaluate(1, 0.5, 1, 0); op.Region != CUTOFF || op.Id != 0 {
		t.Errorf("cutoff: %+v", op)
	}
	if op := p.Evaluate(1, 2, 3, 0); op.Region != SATURATION || !approx(op.Id, 1.69e-4, 1e-9) {
		t.Errorf("saturation: %+v, want Id=1.69e-4", op)
	}
	if op := p.Evaluate(1, 2, 0.5, 0); op.Region != LINEAR || !approx(op.Id, 2e-4*(1.3-0.25)*0.5, 1e-9) {
		t.Errorf("linear: %+v", op)
	}
}

func TestLevel1Derivatives(t *testing.T) {
	p := NewLevel1()
	h := 1e-6
	for _, bias := range [][3]float64{{2, 3, -0.5}, {2, 0.4, -1}, {1.5, 0.2, 0}} {
		vgs, vds, vbs := bias[0], bias[1], bias[2]
		op := p.Evaluate(1, vgs, vds, vbs)
		gm := (p.Evaluate(1, vgs+h, vds, vbs).Id - p.Evaluate(1, vgs-h, vds, vbs).Id) / (2 * h)
		gds := (p.Evaluate(1, vgs, vds+h, vbs).Id - p.Evaluate(1, vgs, vds-h, vbs).Id) / (2 * h)
		gmbs := (p.Evaluate(1, vgs, vds, vbs+h).Id - p.Evaluate(1, vgs, vds, vbs-h).Id) / (2 * h)
		if !approx(op.Gm, gm, 1e-5) || !approx(op.Gds, gds, 1e-5) || !approx(op.Gmbs, gmbs, 1e-5) {
			t.Errorf("bias %v: analytic (%g,%g,%g) numeric (%g,%g,%g)", bias, op.Gm, op.Gds, op.Gmbs, gm, gds, gmbs)
		}
	}
}

func TestMosfetPolarityMirror(t *testing.T) {
	nmosModel := NewLevel1()
	pmosModel := NewLevel1()
	pmosModel.VTO = -nmosModel.VTO

	nmos := place(NewMosfet("M1", []string{"d", "g", "s", "b"}, "NMOS", nmosModel), 1, 2, 0, 0)
	pmos := place(NewMosfet("M2", []string{"d", "g", "s", "b"}, "PMOS", pmosModel), 1, 2, 0, 0)

	sn := matrix.NewSystem(2, false)
	sp := matrix.NewSystem(2, false)
	if err := nmos.Stamp(sn, newStatus(OperatingPointAnalysis, []float64{0, 3, 2}, nmos), Slot{}); err != nil {
		t.Fatal(err)
	}
	if err := pmos.Stamp(sp, newStatus(OperatingPointAnalysis, []float64{0, -3, -2}, pmos), Slot{}); err != nil {
		t.Fatal(err)
	}
	for _, e := range sn.Entries() {
		if !approx(real(sn.At(e.Row, e.Col)), real(sp.At(e.Row, e.Col)), 1e-12) {
			t.Errorf("G(%d,%d): nmos %v pmos %v", e.Row, e.Col, sn.At(e.Row, e.Col), sp.At(e.Row, e.Col))
		}
	}
	if !approx(real(sn.RHSAt(1)), -real(sp.RHSAt(1)), 1e-12) {
		t.Errorf("rhs: nmos %v pmos %v", sn.RHSAt(1), sp.RHSAt(1))
	}
}

func TestMosfetReversedOrientation(t *testing.T) {
	m := place(NewMosfet("M1", []string{"d", "g", "s", "b"}, "NMOS", nil), 1, 2, 3, 0)
	status := newStatus(OperatingPointAnalysis, []float64{0, 0, 3, 1}, m)
	m.(NonLinear).Linearize(status, Slot{})
	if st := status.State.Slots(Slot{}); st[3] != 1 {
		t.Errorf("orientation flag = %g, want 1 for vds < 0", st[3])
	}
}

func TestWaveforms(t *testing.T) {
	pulse := Waveform{Type: PULSE, V1: 0, V2: 1, Delay: 1, Rise: 1, Fall: 1, PWidth: 2, Period: 10}
	for _, tt := range []struct{ t, want float64 }{
		{0.5, 0}, {1.5, 0.5}, {3, 1}, {4.5, 0.5}, {6, 0}, {11.5, 0.5},
	} {
		if got := pulse.At(tt.t, 0); !approx(got, tt.want, 1e-12) {
			t.Errorf("pulse(%g) = %g, want %g", tt.t, got, tt.want)
		}
	}
	want := []float64{1, 2, 4, 5, 11, 12, 14, 15}
	got := pulse.Breakpoints(15, 0)
	if len(got) != len(want) {
		t.Fatalf("breakpoints = %v, want %v", got, want)
	}
	for i := range want {
		if !approx(got[i], want[i], 1e-12) {
			t.Errorf("breakpoint %d = %g, want %g", i, got[i], want[i])
		}
	}

	pwl := Waveform{Type: PWL, Times: []float64{0, 1e-3, 2e-3}, Values: []float64{0, 1, -1}}
	if got := pwl.At(1.5e-3, 0); !approx(got, 0, 1e-12) {
		t.Errorf("pwl(1.5m) = %g, want 0", got)
	}
	if got := pwl.At(5e-3, 0); got != -1 {
		t.Errorf("pwl past end = %g, want -1", got)
	}

	sin := Waveform{Type: SIN, DC: 1, Amplitude: 2, Freq: 1e3}
	if got := sin.At(0.25e-3, 0); !approx(got, 3, 1e-12) {
		t.Errorf("sin(T/4) = %g, want 3", got)
	}
}

func TestPulseZeroEdges(t *testing.T) {
	step := Waveform{Type: PULSE, V1: 0, V2: 1, PWidth: 1}
	for _, tt := range []struct{ t, want float64 }{
		{0, 0}, {0.05, 0.5}, {0.1, 1}, {1.05, 1}, {1.15, 0.5}, {2, 0},
	} {
		if got := step.At(tt.t, 0.1); !approx(got, tt.want, 1e-12) {
			t.Errorf("pulse(%g) = %g, want %g", tt.t, got, tt.want)
		}
	}
	if got := step.At(0, 0); got != 0 {
		t.Errorf("pulse(0) without edge = %g, want V1", got)
	}
	want := []float64{0.1, 1.1, 1.2}
	got := step.Breakpoints(5, 0.1)
	if len(got) != len(want) {
		t.Fatalf("breakpoints = %v, want %v", got, want)
	}
	for i := range want {
		if !approx(got[i], want[i], 1e-12) {
			t.Errorf("breakpoint %d = %g, want %g", i, got[i], want[i])
		}
	}

	// Edges shrink to fit the period.
	tight := Waveform{Type: PULSE, V1: 0, V2: 1, PWidth: 0.8, Period: 1}
	if rise, fall := tight.edges(0.5); !approx(rise, 0.1, 1e-12) || !approx(fall, 0.1, 1e-12) {
		t.Errorf("edges = %g, %g, want 0.1 each", rise, fall)
	}
}

func TestSourceOverrideAndScale(t *testing.T) {
	v := place(NewDCVoltageSource("V1", []string{"a", "0"}, 5), 1, 0)
	at := Slot{Index: 0, Branch: 2}
	status := newStatus(OperatingPointAnalysis, make([]float64, 3), v)

	sys := matrix.NewSystem(2, false)
	status.SourceScale = 0.5
	if err := v.Stamp(sys, status, at); err != nil {
		t.Fatal(err)
	}
	if got := real(sys.RHSAt(2)); got != 2.5 {
		t.Errorf("scaled value = %g, want 2.5", got)
	}

	sys.Reset()
	status.SourceScale = 1
	status.Overrides = []Override{{Device: 0, Value: -3}}
	if err := v.Stamp(sys, status, at); err != nil {
		t.Fatal(err)
	}
	if got := real(sys.RHSAt(2)); got != -3 {
		t.Errorf("forced value = %g, want -3", got)
	}

	i := place(NewDCCurrentSource("I1", []string{"a", "0"}, 1e-3), 1, 0)
	sys.Reset()
	status.Overrides = nil
	if err := i.Stamp(sys, status, Slot{Index: 1}); err != nil {
		t.Fatal(err)
	}
	if got := real(sys.RHSAt(1)); got != -1e-3 {
		t.Errorf("current source rhs = %g, want -1e-3", got)
	}
}

func TestControlledSourceStamps(t *testing.T) {
	e := place(NewVCVS("E1", []string{"o", "0", "i", "0"}, 10), 1, 0, 2, 0)
	sys := matrix.NewSystem(3, false)
	if err := e.Stamp(sys, NewCircuitStatus(OperatingPointAnalysis), Slot{Branch: 3}); err != nil {
		t.Fatal(err)
	}
	if real(sys.At(3, 1)) != 1 || real(sys.At(3, 2)) != -10 || real(sys.At(1, 3)) != 1 {
		t.Errorf("vcvs stamp wrong")
	}

	f := place(NewCCCS("F1", []string{"o", "0"}, "V1", 2), 1, 0)
	sys = matrix.NewSystem(3, false)
	if err := f.Stamp(sys, NewCircuitStatus(OperatingPointAnalysis), Slot{Control: 3}); err != nil {
		t.Fatal(err)
	}
	if real(sys.At(1, 3)) != 2 {
		t.Errorf("cccs gain entry = %v, want 2", sys.At(1, 3))
	}
	if err := f.Stamp(sys, NewCircuitStatus(OperatingPointAnalysis), Slot{}); err == nil {
		t.Error("unresolved control should fail")
	}
}
