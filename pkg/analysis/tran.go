package analysis

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/edp1096/mna-spice/pkg/circuit"
	"github.com/edp1096/mna-spice/pkg/device"
	"github.com/edp1096/mna-spice/pkg/util"
	"github.com/pkg/errors"
)

type Transient struct {
	BaseAnalysis
	cmd circuit.TRAN

	hMin  float64
	hMax  float64
	hInit float64
	// edge is the width given to zero pulse edges.
	edge float64

	// breakpoints are sorted source corners in (0, Stop], Stop last.
	breakpoints []float64
}

func NewTransient(cmd circuit.TRAN, cfg Config) *Transient {
	return &Transient{
		BaseAnalysis: *NewBaseAnalysis(KindTRAN, cmd, cfg),
		cmd:          cmd,
	}
}

func (tr *Transient) Setup(ckt *circuit.Circuit) error {
	cmd := tr.cmd
	for _, v := range []float64{cmd.Step, cmd.Stop, cmd.Start, cmd.MaxStep} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrInvalidAnalysis, "tran: non-finite parameter %g", v)
		}
	}
	if cmd.Step <= 0 || cmd.Stop <= 0 || cmd.Start < 0 || cmd.Start >= cmd.Stop || cmd.MaxStep < 0 {
		return errors.Wrapf(ErrInvalidAnalysis, "tran: bad command %s", cmd)
	}
	if err := tr.setup(ckt); err != nil {
		return err
	}

	switch {
	case cmd.MaxStep > 0:
		tr.hMax = cmd.MaxStep
	case tr.config.HMax > 0:
		tr.hMax = tr.config.HMax
	default:
		tr.hMax = cmd.Stop / 50
	}
	tr.hMin = tr.config.HMin
	if tr.hMin == 0 {
		tr.hMin = tr.hMax * 1e-9
	}
	if tr.hMin >= tr.hMax {
		return errors.Wrapf(ErrInvalidAnalysis, "tran: minimum step %g not below maximum %g", tr.hMin, tr.hMax)
	}
	tr.hInit = tr.config.HInit
	if tr.hInit == 0 {
		tr.hInit = cmd.Step / 10
	}
	tr.hInit = util.Clamp(tr.hInit, tr.hMin, tr.hMax)

	tr.edge = cmd.Step
	var bps []float64
	for _, dev := range ckt.GetDevices() {
		if src, ok := dev.(device.Source); ok {
			bps = append(bps, src.Breakpoints(cmd.Stop, tr.edge)...)
		}
	}
	slices.Sort(bps)
	tr.breakpoints = tr.breakpoints[:0]
	last := 0.0
	for _, bp := range bps {
		if bp-last < tr.hMin || bp >= cmd.Stop-tr.hMin {
			continue
		}
		tr.breakpoints = append(tr.breakpoints, bp)
		last = bp
	}
	tr.breakpoints = append(tr.breakpoints, cmd.Stop)
	return nil
}

// history keeps the newest accepted points first, at most three.
type history struct {
	t []float64
	x [][]float64
}

func (h *history) reset(t float64, x []float64) {
	h.t, h.x = h.t[:0], h.x[:0]
	h.push(t, x)
}

func (h *history) push(t float64, x []float64) {
	h.t = slices.Insert(h.t, 0, t)
	h.x = slices.Insert(h.x, 0, slices.Clone(x))
	if len(h.t) > 3 {
		h.t, h.x = h.t[:3], h.x[:3]
	}
}

func (h *history) len() int { return len(h.t) }

// Execute steps from the initial state to Stop. Each step is proposed,
// solved with the companion models, checked against the truncation error
// estimate and then accepted or rejected.
func (tr *Transient) Execute(ctx context.Context) error {
	x := tr.zeroVector()
	var conv Convergence
	if !tr.cmd.UIC {
		var err error
		conv, err = tr.operatingPoint(ctx, x, nil, "t=0")
		if err != nil {
			return errors.Wrap(err, "tran: initial operating point")
		}
		tr.result.OP = conv
	}
	tr.state.Accept(x)

	t := 0.0
	if tr.cmd.Start == 0 {
		tr.recordTime(t, x, conv)
	}

	hist := &history{}
	hist.reset(t, x)
	h := tr.hInit
	next := 0
	xn, xm, xf := tr.zeroVector(), tr.zeroVector(), tr.zeroVector()
	saved := tr.state.Clone()
	status := tr.newStatus(device.TransientAnalysis)
	status.Edge = tr.edge

	for t < tr.cmd.Stop {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Propose.
		for tr.breakpoints[next] <= t {
			next++
		}
		bp := tr.breakpoints[next]
		h = math.Min(h, tr.hMax)
		tNext := t + h
		atBreak := false
		if tNext > bp-tr.hMin {
			h, tNext = bp-t, bp
			atBreak = true
		}
		method := tr.config.Method
		if hist.len() < 3 {
			method = util.BackwardEulerMethod
		}
		order := float64(method.Order())

		// Solve and estimate.
		doubled := hist.len() < 2
		var mid Convergence
		var norm float64
		var err error
		if doubled {
			saved.CopyFrom(tr.state)
			mid, conv, norm, err = tr.doubleStep(ctx, status, t, tNext, x, xm, xn, xf)
		} else {
			status.Time = tNext
			status.TimeStep = h
			status.Method = method
			copy(xn, x)
			conv, err = tr.cont.solve(ctx, xn, status)
			if err == nil {
				norm = tr.truncationError(hist, tNext, xn, method.Order())
			}
		}
		if err != nil {
			if !errors.Is(err, ErrConvergence) {
				return err
			}
			if doubled {
				tr.state.CopyFrom(saved)
			}
			err = tr.annotate(err, fmt.Sprintf("t=%g", tNext))
			tr.result.Rejected++
			h /= 8
			tr.log.Debug("step rejected", "time", t, "reason", "convergence", "next", h)
			if h < tr.hMin {
				return tr.stepError(t, h, err)
			}
			continue
		}
		if !(norm <= 1) {
			if doubled {
				tr.state.CopyFrom(saved)
			}
			tr.result.Rejected++
			h *= math.Max(0.25, 0.9*math.Pow(norm, -1/(order+1)))
			tr.log.Debug("step rejected", "time", t, "reason", "truncation error", "norm", norm, "next", h)
			if h < tr.hMin || math.IsNaN(h) {
				return tr.stepError(t, h, nil)
			}
			continue
		}

		// Accept.
		status.X = xn
		tr.mna.Update(status)
		tr.state.Accept(xn)
		if doubled {
			tMid := t + h/2
			tr.result.Steps = append(tr.result.Steps, h/2, h/2)
			if tMid >= tr.cmd.Start-tr.hMin/2 {
				tr.recordTime(tMid, xm, mid)
			}
			hist.reset(tMid, xm)
		} else {
			tr.result.Steps = append(tr.result.Steps, h)
		}
		copy(x, xn)
		t = tNext
		if t >= tr.cmd.Start-tr.hMin/2 {
			tr.recordTime(t, x, conv)
		}

		if atBreak {
			hist.reset(t, x)
			h = tr.hInit
			continue
		}
		hist.push(t, x)
		grow := 2.0
		if norm > 0 {
			grow = math.Min(2, 0.9*math.Pow(norm, -1/(order+1)))
		}
		h *= grow
	}
	return nil
}

// doubleStep solves a step that has no usable history, right after t=0 or
// a breakpoint. The step is taken once whole and once as two backward
// Euler halves; their difference is the error estimate. On return xm and
// xn hold the halves, the midpoint is accepted into the device state and
// status is set up for accepting xn. The caller restores the state when
// the step is rejected.
func (tr *Transient) doubleStep(ctx context.Context, status *device.CircuitStatus, t, tNext float64, x, xm, xn, xf []float64) (mid, end Convergence, norm float64, err error) {
	h := tNext - t
	status.Method = util.BackwardEulerMethod

	status.Time, status.TimeStep = tNext, h
	copy(xf, x)
	if _, err = tr.cont.solve(ctx, xf, status); err != nil {
		return
	}

	status.Time, status.TimeStep = t+h/2, h/2
	copy(xm, x)
	if mid, err = tr.cont.solve(ctx, xm, status); err != nil {
		return
	}
	status.X = xm
	tr.mna.Update(status)
	tr.state.Accept(xm)

	status.Time = tNext
	copy(xn, xm)
	if end, err = tr.cont.solve(ctx, xn, status); err != nil {
		return
	}
	norm = tr.errorNorm(xn, func(i int) float64 { return math.Abs(xn[i] - xf[i]) })
	return
}

func (tr *Transient) recordTime(t float64, x []float64, conv Convergence) {
	tr.result.Time = append(tr.result.Time, t)
	tr.record(x, conv)
}

func (tr *Transient) stepError(t, h float64, err error) error {
	return &TimeStepError{
		Time:    t,
		Step:    h,
		MinStep: tr.hMin,
		Partial: tr.result,
		Err:     err,
	}
}

// truncationError returns the RMS of the weighted local truncation error
// of xNew at tNew, estimated from the difference to a polynomial predictor
// through the history. Values above 1 reject the step.
func (tr *Transient) truncationError(hist *history, tNew float64, xNew []float64, order int) float64 {
	if order >= 2 && hist.len() < 3 {
		order = 1
	}
	t0, x0 := hist.t[0], hist.x[0]
	t1, x1 := hist.t[1], hist.x[1]
	h := tNew - t0
	h1 := t0 - t1

	var factor float64
	var t2 float64
	var x2 []float64
	if order == 1 {
		factor = h / (h + h1)
	} else {
		t2, x2 = hist.t[2], hist.x[2]
		h2 := t1 - t2
		factor = h * h / (2 * (h + h1) * (h + h1 + h2))
	}

	return tr.errorNorm(xNew, func(i int) float64 {
		d1 := (x0[i] - x1[i]) / h1
		pred := x0[i] + d1*h
		if order >= 2 {
			d1b := (x1[i] - x2[i]) / (t1 - t2)
			d2 := (d1 - d1b) / (t0 - t2)
			pred += d2 * h * (tNew - t1)
		}
		return factor * math.Abs(xNew[i]-pred)
	})
}

// errorNorm is the RMS over the state rows of lte(i), each weighted by the
// absolute tolerance of its row plus LTETol relative to xNew.
func (tr *Transient) errorNorm(xNew []float64, lte func(i int) float64) float64 {
	sum, n := 0.0, 0
	for i := 1; i < len(xNew); i++ {
		if !tr.layout.IsStateRow(i) {
			continue
		}
		abstol := tr.config.AbsTol
		if tr.layout.IsVoltage(i) {
			abstol = tr.config.VoltTol
		}
		e := lte(i) / (abstol + tr.config.LTETol*math.Abs(xNew[i]))
		sum += e * e
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}
