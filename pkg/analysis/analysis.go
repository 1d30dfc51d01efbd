package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edp1096/mna-spice/pkg/circuit"
	"github.com/edp1096/mna-spice/pkg/device"
	"github.com/edp1096/mna-spice/pkg/matrix"
	"github.com/pkg/errors"
)

// Analysis is one run of a command against a circuit. Setup builds the
// run's private MNA, solver and device state; Execute fills Result.
type Analysis interface {
	Setup(ckt *circuit.Circuit) error
	Execute(ctx context.Context) error
	Result() *RunResult
	GetResults() map[string][]float64
	Close()
}

type BaseAnalysis struct {
	Circuit *circuit.Circuit
	config  Config
	kind    Kind
	command string
	log     *slog.Logger

	layout *circuit.Layout
	mna    *circuit.MNA
	state  *device.State
	cont   *continuation
	result *RunResult
}

func NewBaseAnalysis(kind Kind, cmd circuit.Command, cfg Config) *BaseAnalysis {
	return &BaseAnalysis{
		config:  cfg,
		kind:    kind,
		command: cmd.String(),
		log:     cfg.logger().With("analysis", kind.String()),
	}
}

func (a *BaseAnalysis) setup(ckt *circuit.Circuit) error {
	if ckt == nil {
		return errors.Wrap(ErrInvalidAnalysis, "nil circuit")
	}
	if err := a.config.validate(); err != nil {
		return err
	}
	layout, err := circuit.NewLayout(ckt)
	if err != nil {
		return err
	}

	a.Circuit = ckt
	a.layout = layout
	a.mna = circuit.NewMNA(ckt, layout, a.newSolver(), false)
	a.state = device.NewState(ckt.GetDevices(), layout.Size)
	a.result = newRunResult(a.kind, ckt.Name(), a.command, layout.Names())
	a.log = a.log.With("run", a.result.ID.String())
	a.cont = &continuation{
		nr:  &newton{mna: a.mna, cfg: &a.config},
		cfg: &a.config,
		log: a.log,
	}
	return nil
}

func (a *BaseAnalysis) newSolver() matrix.Solver {
	return matrix.NewSolver(a.config.Solver, a.layout.Size, a.config.MaxCondition)
}

func (a *BaseAnalysis) newStatus(mode device.AnalysisMode) *device.CircuitStatus {
	status := device.NewCircuitStatus(mode)
	status.State = a.state
	status.Gmin = a.config.Gmin
	status.Temp = a.config.Temp
	status.Method = a.config.Method
	return status
}

// operatingPoint solves the DC problem in place in x with the given
// source overrides.
func (a *BaseAnalysis) operatingPoint(ctx context.Context, x []float64, overrides []device.Override, where string) (Convergence, error) {
	status := a.newStatus(device.OperatingPointAnalysis)
	status.Overrides = overrides
	conv, err := a.cont.solve(ctx, x, status)
	return conv, a.annotate(err, where)
}

func (a *BaseAnalysis) annotate(err error, where string) error {
	var ce *ConvergenceError
	if errors.As(err, &ce) {
		ce.Analysis = a.kind
		ce.Where = where
	}
	return err
}

// record stores x as the next point together with resistor currents.
func (a *BaseAnalysis) record(x []float64, conv Convergence) {
	a.result.addPoint(x, conv)
	for _, dev := range a.Circuit.GetDevices() {
		if r, ok := dev.(*device.Resistor); ok {
			a.result.addDerived(fmt.Sprintf("I(%s)", r.GetName()), r.Current(x, a.config.Temp))
		}
	}
}

func (a *BaseAnalysis) Result() *RunResult { return a.result }

func (a *BaseAnalysis) GetResults() map[string][]float64 {
	if a.result == nil {
		return nil
	}
	return a.result.Results()
}

func (a *BaseAnalysis) Close() {
	if a.mna != nil {
		a.mna.Close()
	}
}

func (a *BaseAnalysis) zeroVector() []float64 {
	return make([]float64, a.layout.Size+1)
}
