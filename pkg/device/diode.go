package device

import (
	"math"

	"github.com/edp1096/mna-spice/internal/consts"
	"github.com/edp1096/mna-spice/pkg/matrix"
	"github.com/edp1096/mna-spice/pkg/util"
)

// Beyond this exponent the junction current continues linearly so a wild
// Newton iterate cannot overflow.
const maxExpArg = 40.0

type Diode struct {
	BaseDevice
	// Model parameters
	Is  float64 // Saturation current
	N   float64 // Emission coefficient
	Cj0 float64 // Zero-bias junction capacitance
	M   float64 // Grading coefficient
	Vj  float64 // Built-in potential
	Bv  float64 // Reverse breakdown voltage, 0 disables breakdown
	Tt  float64 // Transit time
	Fc  float64 // Forward-bias depletion capacitance coefficient

	// Temperature parameters
	Eg  float64 // Energy gap (eV)
	Xti float64 // Saturation current temperature exponent
}

var (
	_ NonLinear     = (*Diode)(nil)
	_ TimeDependent = (*Diode)(nil)
	_ Stateful      = (*Diode)(nil)
)

// State slots.
const (
	diodeG  = iota // small-signal conductance frozen for AC
	diodeC         // junction capacitance frozen for AC
	diodeVd        // last stamped junction voltage, for limiting
	diodeIq        // charge current at the last accepted point
	diodeSlots
)

func NewDiode(name string, nodeNames []string) *Diode {
	d := &Diode{BaseDevice: newBaseDevice(name, nodeNames, 0)}
	d.setDefaultParameters()
	return d
}

func (d *Diode) GetType() string { return "D" }

func (d *Diode) setDefaultParameters() {
	d.Is = 1e-14
	d.N = 1.0
	d.Cj0 = 0.0
	d.M = 0.5
	d.Vj = 1.0
	d.Bv = 100.0
	d.Tt = 0.0
	d.Fc = 0.5

	d.Eg = 1.11 // Silicon
	d.Xti = 3.0
}

func (d *Diode) SetModelParameters(params map[string]float64) {
	for name, dst := range map[string]*float64{
		"is": &d.Is, "n": &d.N, "cj0": &d.Cj0, "m": &d.M, "vj": &d.Vj,
		"bv": &d.Bv, "tt": &d.Tt, "fc": &d.Fc, "eg": &d.Eg, "xti": &d.Xti,
	} {
		if v, ok := params[name]; ok {
			*dst = v
		}
	}
}

func (d *Diode) StateSize() int { return diodeSlots }

func (d *Diode) Validate() error {
	if err := d.checkNodes(2); err != nil {
		return err
	}
	if err := positive(d.Name, "is", d.Is); err != nil {
		return err
	}
	if err := positive(d.Name, "n", d.N); err != nil {
		return err
	}
	if err := positive(d.Name, "vj", d.Vj); err != nil {
		return err
	}
	for _, p := range []struct {
		name string
		v    float64
	}{{"cj0", d.Cj0}, {"bv", d.Bv}, {"tt", d.Tt}} {
		if err := nonNegative(d.Name, p.name, p.v); err != nil {
			return err
		}
	}
	if err := below(d.Name, "m", d.M, 1); err != nil {
		return err
	}
	if err := below(d.Name, "fc", d.Fc, 1); err != nil {
		return err
	}
	if err := finite(d.Name, "eg", d.Eg); err != nil {
		return err
	}
	return finite(d.Name, "xti", d.Xti)
}

func (d *Diode) temperatureAdjustedIs(temp float64) float64 {
	if temp <= 0 {
		temp = consts.REFTEMP
	}
	vt := consts.ThermalVoltage(temp)

	// is(T2) = is(T1) * (T2/T1)^(XTI/N) * exp(-(Eg/(2*vt))*(T2/T1 - 1))
	ratio := temp / consts.REFTEMP
	egfact := -d.Eg / (2 * vt) * (ratio - 1.0)

	return d.Is * math.Pow(ratio, d.Xti/d.N) * math.Exp(egfact)
}

// junctionExp is exp(arg) continued linearly past maxExpArg, and its slope.
func junctionExp(arg float64) (e, de float64) {
	if arg > maxExpArg {
		e = math.Exp(maxExpArg)
		return e * (1 + arg - maxExpArg), e
	}
	e = math.Exp(arg)
	return e, e
}

// evaluate returns junction current and conductance at vd, breakdown
// included.
func (d *Diode) evaluate(vd, temp float64) (id, gd float64) {
	nvt := d.N * consts.ThermalVoltage(temp)
	isT := d.temperatureAdjustedIs(temp)

	e, de := junctionExp(vd / nvt)
	id, gd = isT*(e-1), isT*de/nvt
	if d.Bv > 0 {
		e, de = junctionExp(-(d.Bv + vd) / nvt)
		id -= isT * e
		gd += isT * de / nvt
	}
	return id, gd
}

// limit clamps vd against the last stamped value, mirrored onto the
// breakdown knee when the junction is driven past -Bv.
func (d *Diode) limit(status *CircuitStatus, st []float64, vd float64) float64 {
	nvt := d.N * consts.ThermalVoltage(status.Temp)
	vc := vcrit(nvt, d.temperatureAdjustedIs(status.Temp))
	vold := st[diodeVd]

	var limited bool
	if d.Bv > 0 && vd < math.Min(0, -d.Bv+10*nvt) {
		var vr float64
		vr, limited = pnjlim(-(vd + d.Bv), -(vold + d.Bv), nvt, vc)
		vd = -(vr + d.Bv)
	} else {
		vd, limited = pnjlim(vd, vold, nvt, vc)
	}
	if limited {
		status.Limited++
	}
	st[diodeVd] = vd
	return vd
}

func (d *Diode) hasCharge() bool { return d.Cj0 > 0 || d.Tt > 0 }

// charge returns the depletion plus diffusion charge at vd and its
// capacitance. Above Fc*Vj the depletion capacitance continues linearly.
func (d *Diode) charge(vd, id, gd float64) (q, c float64) {
	if d.Cj0 > 0 {
		if fcv := d.Fc * d.Vj; vd < fcv {
			arg := 1 - vd/d.Vj
			sarg := math.Pow(arg, -d.M)
			q = d.Cj0 * d.Vj * (1 - arg*sarg) / (1 - d.M)
			c = d.Cj0 * sarg
		} else {
			f1 := d.Vj * (1 - math.Pow(1-d.Fc, 1-d.M)) / (1 - d.M)
			f2 := math.Pow(1-d.Fc, 1+d.M)
			f3 := 1 - d.Fc*(1+d.M)
			q = d.Cj0 * (f1 + (f3*(vd-fcv)+d.M/(2*d.Vj)*(vd*vd-fcv*fcv))/f2)
			c = d.Cj0 / f2 * (f3 + d.M*vd/d.Vj)
		}
	}
	return q + d.Tt*id, c + d.Tt*gd
}

// chargeCurrent integrates the junction charge over the step. The charge
// at the last accepted point follows from State.Prev.
func (d *Diode) chargeCurrent(status *CircuitStatus, st []float64, vd, id, gd float64) (iq, gq float64) {
	prev := status.State.Prev
	vPrev := nodeValue(prev, d.Nodes[0]) - nodeValue(prev, d.Nodes[1])
	idPrev, gdPrev := d.evaluate(vPrev, status.Temp)
	qPrev, _ := d.charge(vPrev, idPrev, gdPrev)
	q, c := d.charge(vd, id, gd)

	ag0 := util.GetIntegratorCoeff(status.Method, status.TimeStep)
	iq = ag0 * (q - qPrev)
	if status.Method == util.TrapezoidalMethod {
		iq -= st[diodeIq]
	}
	return iq, ag0 * c
}

func (d *Diode) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus, at Slot) error {
	n1, n2 := d.Nodes[0], d.Nodes[1]
	st := status.State.Slots(at)

	if status.Mode == ACAnalysis {
		stampAdmittance(matrix, n1, n2, st[diodeG], status.Omega*st[diodeC])
		return nil
	}

	vd := d.limit(status, st, status.voltage(n1)-status.voltage(n2))
	id, gd := d.evaluate(vd, status.Temp)
	if status.Mode == TransientAnalysis && d.hasCharge() {
		iq, gq := d.chargeCurrent(status, st, vd, id, gd)
		id += iq
		gd += gq
	}
	g := gd + status.Gmin
	id += status.Gmin * vd

	stampConductance(matrix, n1, n2, g)
	stampCurrent(matrix, n1, n2, id-g*vd)
	return nil
}

func (d *Diode) UpdateState(status *CircuitStatus, at Slot) {
	if !d.hasCharge() {
		return
	}
	st := status.State.Slots(at)
	vd := status.voltage(d.Nodes[0]) - status.voltage(d.Nodes[1])
	id, gd := d.evaluate(vd, status.Temp)
	st[diodeIq], _ = d.chargeCurrent(status, st, vd, id, gd)
}

func (d *Diode) Linearize(status *CircuitStatus, at Slot) {
	vd := status.voltage(d.Nodes[0]) - status.voltage(d.Nodes[1])
	id, gd := d.evaluate(vd, status.Temp)
	st := status.State.Slots(at)
	st[diodeG] = gd + status.Gmin
	_, st[diodeC] = d.charge(vd, id, gd)
}
