package analysis

import (
	"context"
	"runtime"

	"github.com/edp1096/mna-spice/pkg/circuit"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// New returns the analysis for cmd.
func New(cmd circuit.Command, cfg Config) (Analysis, error) {
	switch c := cmd.(type) {
	case circuit.OP:
		return NewOP(c, cfg), nil
	case circuit.DC:
		return NewDCSweep(c, cfg), nil
	case circuit.AC:
		return NewAC(c, cfg), nil
	case circuit.TRAN:
		return NewTransient(c, cfg), nil
	case nil:
		return nil, errors.Wrap(ErrInvalidAnalysis, "nil command")
	}
	return nil, errors.Wrapf(ErrInvalidAnalysis, "unsupported command %s", cmd)
}

// Run sets up and executes one command. A transient that fails on its
// step size still returns the partial result.
func Run(ctx context.Context, ckt *circuit.Circuit, cmd circuit.Command, cfg Config) (*RunResult, error) {
	a, err := New(cmd, cfg)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	if err := a.Setup(ckt); err != nil {
		return nil, err
	}
	if err := a.Execute(ctx); err != nil {
		var tse *TimeStepError
		if errors.As(err, &tse) {
			return tse.Partial, err
		}
		return nil, err
	}
	return a.Result(), nil
}

// RunAll executes every command of ckt concurrently. Results come back in
// command order; a failed run leaves a nil entry (or a partial transient)
// and the first error in command order is returned.
func RunAll(ctx context.Context, ckt *circuit.Circuit, cfg Config) ([]*RunResult, error) {
	cmds := ckt.Analyses()
	results := make([]*RunResult, len(cmds))
	errs := make([]error, len(cmds))

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i, cmd := range cmds {
		g.Go(func() error {
			res, err := Run(ctx, ckt, cmd, cfg)
			results[i] = res
			if err != nil {
				errs[i] = errors.Wrapf(err, "analysis %d (%s)", i, cmd)
			}
			return nil
		})
	}
	g.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
