package analysis

import (
	"context"
	"math"

	"github.com/edp1096/mna-spice/pkg/circuit"
	"github.com/edp1096/mna-spice/pkg/device"
	"github.com/edp1096/mna-spice/pkg/util"
	"github.com/pkg/errors"
)

type ACAnalysis struct {
	BaseAnalysis
	cmd         circuit.AC
	frequencies []float64
	cmna        *circuit.MNA
}

func NewAC(cmd circuit.AC, cfg Config) *ACAnalysis {
	return &ACAnalysis{
		BaseAnalysis: *NewBaseAnalysis(KindAC, cmd, cfg),
		cmd:          cmd,
	}
}

func (ac *ACAnalysis) Setup(ckt *circuit.Circuit) error {
	freqs, err := frequencyPoints(ac.cmd)
	if err != nil {
		return err
	}
	if err := ac.setup(ckt); err != nil {
		return err
	}
	ac.frequencies = freqs
	ac.cmna = circuit.NewMNA(ckt, ac.layout, ac.newSolver(), true)
	return nil
}

// frequencyPoints returns N points per decade or octave from FStart, k*N+1
// of them over k whole decades (octaves), or exactly N linear points.
func frequencyPoints(cmd circuit.AC) ([]float64, error) {
	if cmd.Points < 1 {
		return nil, errors.Wrapf(ErrInvalidAnalysis, "ac: %d points", cmd.Points)
	}
	for _, f := range []float64{cmd.FStart, cmd.FStop} {
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return nil, errors.Wrapf(ErrInvalidAnalysis, "ac: bad frequency %g", f)
		}
	}
	if cmd.FStop < cmd.FStart {
		return nil, errors.Wrapf(ErrInvalidAnalysis, "ac: stop %g below start %g", cmd.FStop, cmd.FStart)
	}

	switch cmd.Type {
	case circuit.LIN:
		freqs := make([]float64, cmd.Points)
		if cmd.Points == 1 {
			freqs[0] = cmd.FStart
			return freqs, nil
		}
		step := (cmd.FStop - cmd.FStart) / float64(cmd.Points-1)
		for i := range freqs {
			freqs[i] = cmd.FStart + float64(i)*step
		}
		return freqs, nil

	case circuit.DEC, circuit.OCT:
		if cmd.FStart <= 0 {
			return nil, errors.Wrapf(ErrInvalidAnalysis, "ac %s: start frequency must be positive", cmd.Type)
		}
		base := 10.0
		if cmd.Type == circuit.OCT {
			base = 2
		}
		span := math.Log(cmd.FStop/cmd.FStart) / math.Log(base)
		n := int(math.Floor(span*float64(cmd.Points)+1e-9)) + 1
		if n > maxSweepPoints {
			return nil, errors.Wrapf(ErrInvalidAnalysis, "ac: %d frequency points", n)
		}
		freqs := make([]float64, n)
		for i := range freqs {
			freqs[i] = cmd.FStart * math.Pow(base, float64(i)/float64(cmd.Points))
		}
		return freqs, nil
	}
	return nil, errors.Wrapf(ErrInvalidAnalysis, "ac: unknown sweep type %d", cmd.Type)
}

// Execute solves the operating point, freezes the small-signal parameters
// of nonlinear devices there, then solves one complex system per frequency.
func (ac *ACAnalysis) Execute(ctx context.Context) error {
	x := ac.zeroVector()
	conv, err := ac.operatingPoint(ctx, x, nil, "")
	if err != nil {
		return errors.Wrap(err, "ac: operating point")
	}
	ac.result.OP = conv

	status := ac.newStatus(device.OperatingPointAnalysis)
	status.X = x
	ac.mna.Linearize(status)

	status = ac.newStatus(device.ACAnalysis)
	status.X = x
	for _, f := range ac.frequencies {
		if err := ctx.Err(); err != nil {
			return err
		}
		status.Omega = 2 * math.Pi * f
		if err := ac.cmna.Load(status, 0); err != nil {
			return err
		}
		sol, err := ac.cmna.SolveComplex()
		if err != nil {
			return errors.Wrapf(err, "ac: solve at %s", util.FormatFrequency(f))
		}
		ac.result.addPhasor(f, sol)
	}
	return nil
}

func (ac *ACAnalysis) Close() {
	ac.BaseAnalysis.Close()
	if ac.cmna != nil {
		ac.cmna.Close()
	}
}
