package device

import (
	"math"

	"github.com/edp1096/mna-spice/pkg/matrix"
	"github.com/edp1096/mna-spice/pkg/util"
)

const (
	CUTOFF     = 0 // Cutoff region
	LINEAR     = 1 // Linear/Triode region
	SATURATION = 2 // Saturation region
)

const (
	epsOx = 3.9 * 8.854214871e-12  // Oxide permittivity (F/m)
	epsSi = 11.7 * 8.854214871e-12 // Silicon permittivity (F/m)
)

// MosOperatingPoint is the drain current of an n-channel-normalized device
// and its partial derivatives.
type MosOperatingPoint struct {
	Id     float64
	Gm     float64
	Gds    float64
	Gmbs   float64
	Region int
}

// MosModel evaluates drain current for normalized terminal voltages with
// vds >= 0. sign is +1 for NMOS and -1 for PMOS.
type MosModel interface {
	Evaluate(sign, vgs, vds, vbs float64) MosOperatingPoint
	// Threshold is the normalized threshold voltage at vbs.
	Threshold(sign, vbs float64) float64
	// GateCapacitance returns the Meyer gate capacitances in region, in
	// normal orientation.
	GateCapacitance(region int) (cgs, cgd, cgb float64)
	Validate(device string) error
}

// MosCommon holds what every level shares: geometry, threshold with body
// effect, channel length modulation and gate capacitance.
type MosCommon struct {
	L      float64 // Channel length (m)
	W      float64 // Channel width (m)
	VTO    float64 // Threshold voltage
	GAMMA  float64 // Body effect parameter (V^0.5)
	PHI    float64 // Surface potential (V)
	LAMBDA float64 // Channel length modulation (1/V)

	TOX  float64 // Oxide thickness (m), 0 drops the intrinsic gate capacitance
	CGSO float64 // Gate-Source overlap capacitance per unit width (F/m)
	CGDO float64 // Gate-Drain overlap capacitance per unit width (F/m)
	CGBO float64 // Gate-Bulk overlap capacitance per unit length (F/m)
}

func defaultMosCommon() MosCommon {
	return MosCommon{
		L:      10e-6,
		W:      10e-6,
		VTO:    0.7,
		GAMMA:  0.5,
		PHI:    0.6,
		LAMBDA: 0.01,
	}
}

func (p *MosCommon) setParameters(params map[string]float64) {
	for name, dst := range map[string]*float64{
		"l": &p.L, "w": &p.W, "vto": &p.VTO, "gamma": &p.GAMMA, "phi": &p.PHI, "lambda": &p.LAMBDA,
		"tox": &p.TOX, "cgso": &p.CGSO, "cgdo": &p.CGDO, "cgbo": &p.CGBO,
	} {
		if v, ok := params[name]; ok {
			*dst = v
		}
	}
}

func (p *MosCommon) validate(device string) error {
	if err := positive(device, "l", p.L); err != nil {
		return err
	}
	if err := positive(device, "w", p.W); err != nil {
		return err
	}
	if err := positive(device, "phi", p.PHI); err != nil {
		return err
	}
	for _, q := range []struct {
		name string
		v    float64
	}{
		{"gamma", p.GAMMA}, {"lambda", p.LAMBDA},
		{"tox", p.TOX}, {"cgso", p.CGSO}, {"cgdo", p.CGDO}, {"cgbo", p.CGBO},
	} {
		if err := nonNegative(device, q.name, q.v); err != nil {
			return err
		}
	}
	return finite(device, "vto", p.VTO)
}

// threshold returns the threshold and its vbs derivative. Forward body
// bias continues linearly.
func (p *MosCommon) threshold(sign, vbs float64) (vth, dvth float64) {
	sqrtPhi := math.Sqrt(p.PHI)
	if vbs <= 0 {
		sq := math.Sqrt(p.PHI - vbs)
		return sign*p.VTO + p.GAMMA*(sq-sqrtPhi), -p.GAMMA / (2 * sq)
	}
	dvth = -p.GAMMA / (2 * sqrtPhi)
	return sign*p.VTO + dvth*vbs, dvth
}

func (p *MosCommon) Threshold(sign, vbs float64) float64 {
	vth, _ := p.threshold(sign, vbs)
	return vth
}

// cox is the oxide capacitance per area, zero without TOX.
func (p *MosCommon) cox() float64 {
	if p.TOX <= 0 {
		return 0
	}
	return epsOx / p.TOX
}

func (p *MosCommon) GateCapacitance(region int) (cgs, cgd, cgb float64) {
	cgate := p.cox() * p.W * p.L
	cgs, cgd, cgb = p.CGSO*p.W, p.CGDO*p.W, p.CGBO*p.L

	switch region {
	case CUTOFF:
		cgb += 2 * cgate / 3
	case LINEAR:
		cgs += cgate / 2
		cgd += cgate / 2
	case SATURATION:
		cgs += 2 * cgate / 3
		cgb += cgate / 3
	}
	return cgs, cgd, cgb
}

// squareLaw is the triode current up to vdsat, held at its vdsat value
// above, times channel length modulation.
func squareLaw(beta, vgst, vdsat, vds, lambda float64) (float64, int) {
	clm := 1 + lambda*vds
	if vds < vdsat {
		return beta * (vgst - vds/2) * vds * clm, LINEAR
	}
	return beta * (vgst - vdsat/2) * vdsat * clm, SATURATION
}

type drainFunc func(sign, vgs, vds, vbs float64) (float64, int)

// numericOP evaluates drain and takes its derivatives by central
// differences.
func numericOP(drain drainFunc, sign, vgs, vds, vbs float64) MosOperatingPoint {
	const delta = 1e-6

	id, region := drain(sign, vgs, vds, vbs)
	if region == CUTOFF {
		return MosOperatingPoint{Region: CUTOFF}
	}
	diff := func(dg, dd, db float64) float64 {
		hi, _ := drain(sign, vgs+dg, vds+dd, vbs+db)
		lo, _ := drain(sign, vgs-dg, vds-dd, vbs-db)
		return (hi - lo) / (2 * delta)
	}
	return MosOperatingPoint{
		Id:     id,
		Gm:     diff(delta, 0, 0),
		Gds:    diff(0, delta, 0),
		Gmbs:   diff(0, 0, delta),
		Region: region,
	}
}

// Level1 is the Shichman-Hodges square-law model.
type Level1 struct {
	MosCommon
	KP float64 // Transconductance parameter (A/V^2)
}

func NewLevel1() *Level1 {
	return &Level1{MosCommon: defaultMosCommon(), KP: 2e-5}
}

func (p *Level1) SetModelParameters(params map[string]float64) {
	p.setParameters(params)
	if kp, ok := params["kp"]; ok {
		p.KP = kp
	}
}

func (p *Level1) Validate(device string) error {
	if err := p.validate(device); err != nil {
		return err
	}
	return positive(device, "kp", p.KP)
}

func (p *Level1) Evaluate(sign, vgs, vds, vbs float64) MosOperatingPoint {
	beta := p.KP * p.W / p.L
	vth, dvth := p.threshold(sign, vbs)

	vgst := vgs - vth
	if vgst <= 0 {
		return MosOperatingPoint{Region: CUTOFF}
	}

	clm := 1 + p.LAMBDA*vds
	var op MosOperatingPoint
	if vds < vgst {
		op.Region = LINEAR
		op.Id = beta * (vgst - vds/2) * vds * clm
		op.Gm = beta * vds * clm
		op.Gds = beta*(vgst-vds)*clm + beta*p.LAMBDA*(vgst-vds/2)*vds
	} else {
		op.Region = SATURATION
		op.Id = beta / 2 * vgst * vgst * clm
		op.Gm = beta * vgst * clm
		op.Gds = beta / 2 * vgst * vgst * p.LAMBDA
	}
	op.Gmbs = -op.Gm * dvth
	return op
}

// Level2 is the Grove-Frohman model: gain from oxide thickness and surface
// mobility, field dependent mobility and velocity saturation.
type Level2 struct {
	MosCommon
	UO    float64 // Surface mobility (cm^2/V/s)
	UCRIT float64 // Critical field for mobility degradation (V/cm)
	UEXP  float64 // Critical field exponent, 0 disables degradation
	VMAX  float64 // Maximum drift velocity (m/s), 0 disables saturation
}

func NewLevel2() *Level2 {
	p := &Level2{MosCommon: defaultMosCommon(), UO: 600, UCRIT: 1e4}
	p.TOX = 1e-7
	return p
}

func (p *Level2) SetModelParameters(params map[string]float64) {
	p.setParameters(params)
	for name, dst := range map[string]*float64{"uo": &p.UO, "ucrit": &p.UCRIT, "uexp": &p.UEXP, "vmax": &p.VMAX} {
		if v, ok := params[name]; ok {
			*dst = v
		}
	}
}

func (p *Level2) Validate(device string) error {
	if err := p.validate(device); err != nil {
		return err
	}
	if err := positive(device, "tox", p.TOX); err != nil {
		return err
	}
	if err := positive(device, "uo", p.UO); err != nil {
		return err
	}
	for _, q := range []struct {
		name string
		v    float64
	}{{"ucrit", p.UCRIT}, {"uexp", p.UEXP}, {"vmax", p.VMAX}} {
		if err := nonNegative(device, q.name, q.v); err != nil {
			return err
		}
	}
	return nil
}

func (p *Level2) drain(sign, vgs, vds, vbs float64) (float64, int) {
	vth, _ := p.threshold(sign, vbs)
	vgst := vgs - vth
	if vgst <= 0 {
		return 0, CUTOFF
	}

	ueff := p.UO * 1e-4 // m^2/V/s
	if p.UEXP > 0 && p.UCRIT > 0 {
		eeff := vgst / (p.TOX * 100) // V/cm
		ueff /= 1 + math.Pow(eeff/p.UCRIT, p.UEXP)
	}
	beta := ueff * p.cox() * p.W / p.L

	vdsat := vgst
	if p.VMAX > 0 {
		vdsat = math.Min(vgst, p.VMAX/ueff*p.L)
	}
	return squareLaw(beta, vgst, vdsat, vds, p.LAMBDA)
}

func (p *Level2) Evaluate(sign, vgs, vds, vbs float64) MosOperatingPoint {
	return numericOP(p.drain, sign, vgs, vds, vbs)
}

// Level3 is the semi-empirical short-channel model.
type Level3 struct {
	MosCommon
	KP    float64 // Transconductance parameter (A/V^2)
	THETA float64 // Mobility modulation (1/V)
	ETA   float64 // Static feedback, threshold drop per volt of vds
	DELTA float64 // Width effect on threshold voltage
	KAPPA float64 // Saturation field factor (1/V)
}

func NewLevel3() *Level3 {
	p := &Level3{MosCommon: defaultMosCommon(), KP: 2e-5, KAPPA: 0.2}
	p.TOX = 1e-7
	return p
}

func (p *Level3) SetModelParameters(params map[string]float64) {
	p.setParameters(params)
	for name, dst := range map[string]*float64{
		"kp": &p.KP, "theta": &p.THETA, "eta": &p.ETA, "delta": &p.DELTA, "kappa": &p.KAPPA,
	} {
		if v, ok := params[name]; ok {
			*dst = v
		}
	}
}

func (p *Level3) Validate(device string) error {
	if err := p.validate(device); err != nil {
		return err
	}
	if err := positive(device, "kp", p.KP); err != nil {
		return err
	}
	for _, q := range []struct {
		name string
		v    float64
	}{{"theta", p.THETA}, {"eta", p.ETA}, {"delta", p.DELTA}, {"kappa", p.KAPPA}} {
		if err := nonNegative(device, q.name, q.v); err != nil {
			return err
		}
	}
	if p.DELTA > 0 {
		return positive(device, "tox", p.TOX)
	}
	return nil
}

func (p *Level3) drain(sign, vgs, vds, vbs float64) (float64, int) {
	vth, _ := p.threshold(sign, vbs)
	vth -= p.ETA * vds
	if p.DELTA > 0 {
		vth += p.DELTA * math.Pi * epsSi / (2 * p.cox() * p.W) * (p.PHI - math.Min(vbs, 0))
	}
	vgst := vgs - vth
	if vgst <= 0 {
		return 0, CUTOFF
	}

	beta := p.KP * p.W / p.L / (1 + p.THETA*vgst)
	vdsat := vgst / math.Sqrt(1+p.KAPPA*vgst)
	return squareLaw(beta, vgst, vdsat, vds, p.LAMBDA)
}

func (p *Level3) Evaluate(sign, vgs, vds, vbs float64) MosOperatingPoint {
	return numericOP(p.drain, sign, vgs, vds, vbs)
}

// Mosfet terminals are drain, gate, source, bulk.
type Mosfet struct {
	BaseDevice
	Type  string // "NMOS" or "PMOS"
	Model MosModel
}

var (
	_ NonLinear     = (*Mosfet)(nil)
	_ TimeDependent = (*Mosfet)(nil)
	_ Stateful      = (*Mosfet)(nil)
)

// State slots.
const (
	mosGm       = iota // small-signal parameters frozen for AC
	mosGds
	mosGmbs
	mosReversed        // 1 when the drain and source swap roles
	mosCgs             // gate capacitances frozen for AC
	mosCgd
	mosCgb
	mosVgs             // last stamped vgs and vds, for limiting
	mosVds
	mosIgs             // gate capacitor currents at the last accepted point
	mosIgd
	mosIgb
	mosSlots
)

func NewMosfet(name string, nodeNames []string, mosType string, model MosModel) *Mosfet {
	if model == nil {
		model = NewLevel1()
	}
	return &Mosfet{
		BaseDevice: newBaseDevice(name, nodeNames, 0),
		Type:       mosType,
		Model:      model,
	}
}

func (m *Mosfet) GetType() string { return "M" }

func (m *Mosfet) StateSize() int { return mosSlots }

func (m *Mosfet) Validate() error {
	if err := m.checkNodes(4); err != nil {
		return err
	}
	if m.Type != "NMOS" && m.Type != "PMOS" {
		return &InvalidParameterError{Device: m.Name, Param: "type", Reason: "must be NMOS or PMOS, got " + m.Type}
	}
	return m.Model.Validate(m.Name)
}

func (m *Mosfet) sign() float64 {
	if m.Type == "PMOS" {
		return -1
	}
	return 1
}

type mosBias struct {
	dn, sn        int // effective drain and source after orientation
	vgs, vds, vbs float64
	reversed      bool
	op            MosOperatingPoint
}

// terminalVoltages returns the normalized vgs, vds and vbs in x.
func (m *Mosfet) terminalVoltages(x []float64) (vgs, vds, vbs float64) {
	d, g, s, b := m.Nodes[0], m.Nodes[1], m.Nodes[2], m.Nodes[3]
	sign := m.sign()
	vs := nodeValue(x, s)
	return sign * (nodeValue(x, g) - vs), sign * (nodeValue(x, d) - vs), sign * (nodeValue(x, b) - vs)
}

// orient swaps drain and source when vds < 0 and evaluates the model.
func (m *Mosfet) orient(vgs, vds, vbs float64) mosBias {
	bias := mosBias{dn: m.Nodes[0], sn: m.Nodes[2], vgs: vgs, vds: vds, vbs: vbs}
	if vds < 0 {
		bias.dn, bias.sn, bias.reversed = bias.sn, bias.dn, true
		bias.vgs, bias.vbs, bias.vds = vgs-vds, vbs-vds, -vds
	}
	bias.op = m.Model.Evaluate(m.sign(), bias.vgs, bias.vds, bias.vbs)
	return bias
}

// limit clamps the update of vgs and vds around the last stamped values,
// working on the gate-drain voltage while the device runs reversed.
func (m *Mosfet) limit(status *CircuitStatus, st []float64, vgs, vds, vbs float64) (float64, float64) {
	vgsOld, vdsOld := st[mosVgs], st[mosVds]
	von := m.Model.Threshold(m.sign(), vbs)
	vgsIn, vdsIn := vgs, vds

	vgd := vgs - vds
	if vdsOld >= 0 {
		vgs = fetlim(vgs, vgsOld, von)
		vds = limvds(vgs-vgd, vdsOld)
	} else {
		vgd = fetlim(vgd, vgsOld-vdsOld, von)
		vds = -limvds(vgd-vgs, -vdsOld)
		vgs = vgd + vds
	}

	if vgs != vgsIn || vds != vdsIn {
		status.Limited++
	}
	st[mosVgs], st[mosVds] = vgs, vds
	return vgs, vds
}

type gateCap struct {
	node int // terminal opposite the gate
	c    float64
}

// gateCaps returns the gate to source, drain and bulk capacitors for the
// region at x.
func (m *Mosfet) gateCaps(x []float64) [3]gateCap {
	bias := m.orient(m.terminalVoltages(x))
	cgs, cgd, cgb := m.Model.GateCapacitance(bias.op.Region)
	if bias.reversed {
		cgs, cgd = cgd, cgs
	}
	return [3]gateCap{{m.Nodes[2], cgs}, {m.Nodes[0], cgd}, {m.Nodes[3], cgb}}
}

func stampMos(matrix matrix.DeviceMatrix, dn, g, sn, b int, gm, gds, gmbs float64) {
	matrix.AddElement(dn, dn, gds)
	matrix.AddElement(dn, sn, -gds-gm-gmbs)
	matrix.AddElement(dn, g, gm)
	matrix.AddElement(dn, b, gmbs)

	matrix.AddElement(sn, dn, -gds)
	matrix.AddElement(sn, sn, gds+gm+gmbs)
	matrix.AddElement(sn, g, -gm)
	matrix.AddElement(sn, b, -gmbs)
}

func (m *Mosfet) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus, at Slot) error {
	g, b := m.Nodes[1], m.Nodes[3]
	st := status.State.Slots(at)

	if status.Mode == ACAnalysis {
		dn, sn := m.Nodes[0], m.Nodes[2]
		if st[mosReversed] != 0 {
			dn, sn = sn, dn
		}
		stampMos(matrix, dn, g, sn, b, st[mosGm], st[mosGds], st[mosGmbs])
		for i, n := range []int{m.Nodes[2], m.Nodes[0], b} {
			if c := st[mosCgs+i]; c > 0 {
				stampAdmittance(matrix, g, n, 0, status.Omega*c)
			}
		}
		return nil
	}

	vgs, vds, vbs := m.terminalVoltages(status.X)
	vgs, vds = m.limit(status, st, vgs, vds, vbs)
	bias := m.orient(vgs, vds, vbs)
	op := bias.op
	gds := op.Gds + status.Gmin
	ieq := m.sign() * (op.Id - op.Gm*bias.vgs - op.Gds*bias.vds - op.Gmbs*bias.vbs)

	stampMos(matrix, bias.dn, g, bias.sn, b, op.Gm, gds, op.Gmbs)
	stampCurrent(matrix, bias.dn, bias.sn, ieq)

	if status.Mode == TransientAnalysis {
		m.stampGateCharge(matrix, status, st)
	}
	return nil
}

// stampGateCharge stamps the Meyer capacitors as companion models, sized
// for the region at the last accepted point.
func (m *Mosfet) stampGateCharge(matrix matrix.DeviceMatrix, status *CircuitStatus, st []float64) {
	g := m.Nodes[1]
	prev := status.State.Prev
	for i, gc := range m.gateCaps(prev) {
		if gc.c == 0 {
			continue
		}
		vPrev := nodeValue(prev, g) - nodeValue(prev, gc.node)
		geq, ieq := util.Companion(status.Method, gc.c, status.TimeStep, vPrev, st[mosIgs+i])
		stampConductance(matrix, g, gc.node, geq)
		stampCurrent(matrix, g, gc.node, -ieq)
	}
}

func (m *Mosfet) UpdateState(status *CircuitStatus, at Slot) {
	st := status.State.Slots(at)
	g := m.Nodes[1]
	prev := status.State.Prev
	for i, gc := range m.gateCaps(prev) {
		if gc.c == 0 {
			st[mosIgs+i] = 0
			continue
		}
		vPrev := nodeValue(prev, g) - nodeValue(prev, gc.node)
		geq, ieq := util.Companion(status.Method, gc.c, status.TimeStep, vPrev, st[mosIgs+i])
		st[mosIgs+i] = geq*(status.voltage(g)-status.voltage(gc.node)) - ieq
	}
}

func (m *Mosfet) Linearize(status *CircuitStatus, at Slot) {
	bias := m.orient(m.terminalVoltages(status.X))
	st := status.State.Slots(at)
	st[mosGm], st[mosGds], st[mosGmbs] = bias.op.Gm, bias.op.Gds+status.Gmin, bias.op.Gmbs
	st[mosReversed] = 0
	if bias.reversed {
		st[mosReversed] = 1
	}
	for i, gc := range m.gateCaps(status.X) {
		st[mosCgs+i] = gc.c
	}
}
