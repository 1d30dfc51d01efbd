package analysis

import (
	"context"
	"log/slog"
	"slices"

	"github.com/edp1096/mna-spice/pkg/device"
	"github.com/edp1096/mna-spice/pkg/matrix"
	"github.com/pkg/errors"
)

// iterator runs one Newton attempt from x in place.
type iterator interface {
	solve(ctx context.Context, x []float64, status *device.CircuitStatus, gshunt float64) (newtonResult, error)
}

// continuation wraps Newton with gmin stepping and source stepping.
type continuation struct {
	nr  iterator
	cfg *Config
	log *slog.Logger
}

// level is the loop state of one continuation attempt.
type level struct {
	strategy Strategy
	k        int
	value    float64 // shunt conductance or source scale
}

// gminSchedule returns the shunt levels, largest first, ending at the floor.
func gminSchedule(cfg *Config) []float64 {
	levels := make([]float64, 0, cfg.GminSteps+1)
	g := cfg.GminStart
	for k := 0; k < cfg.GminSteps && g > cfg.GminFloor*(1+1e-9); k++ {
		levels = append(levels, g)
		g *= cfg.GminFactor
	}
	return append(levels, cfg.GminFloor)
}

// solve finds a solution of status in place in x, starting from x.
func (c *continuation) solve(ctx context.Context, x []float64, status *device.CircuitStatus) (Convergence, error) {
	start := slices.Clone(x)

	res, err := c.nr.solve(ctx, x, status, 0)
	if err != nil {
		return Convergence{}, err
	}
	total := res.iterations
	if res.converged {
		return Convergence{Iterations: total, Residual: res.residual, Strategy: StrategyNewton}, nil
	}
	last := res

	var tried []Strategy
	if c.cfg.GminStepping {
		tried = append(tried, StrategyGmin)
		copy(x, start)
		conv, res, err := c.gminStepping(ctx, x, status)
		total += conv.Iterations
		if err != nil {
			return Convergence{}, err
		}
		if res.converged {
			conv.Iterations = total
			return conv, nil
		}
		last = res
	}

	if c.cfg.SourceStepping {
		tried = append(tried, StrategySource)
		clear(x)
		conv, res, err := c.sourceStepping(ctx, x, status)
		total += conv.Iterations
		if err != nil {
			return Convergence{}, err
		}
		if res.converged {
			conv.Iterations = total
			return conv, nil
		}
		last = res
	}

	return Convergence{}, &ConvergenceError{
		Iterations: total,
		Residual:   last.residual,
		Tried:      tried,
		Last:       slices.Clone(x),
		Err:        last.err,
	}
}

func (c *continuation) gminStepping(ctx context.Context, x []float64, status *device.CircuitStatus) (Convergence, newtonResult, error) {
	conv := Convergence{Strategy: StrategyGmin}
	levels := gminSchedule(c.cfg)
	var res newtonResult
	var err error

	for k, g := range levels {
		lv := level{strategy: StrategyGmin, k: k, value: g}
		res, err = c.nr.solve(ctx, x, status, lv.value)
		conv.Iterations += res.iterations
		if err != nil {
			return conv, res, err
		}
		if !res.converged {
			c.log.Debug("gmin stepping failed", "level", lv.k, "gshunt", lv.value, "error", res.err)
			return conv, res, nil
		}
		conv.Levels++
	}

	floor, floorResidual := slices.Clone(x), res.residual
	res, err = c.nr.solve(ctx, x, status, 0)
	conv.Iterations += res.iterations
	if err != nil {
		return conv, res, err
	}
	if res.converged {
		conv.Levels++
		conv.Residual = res.residual
		return conv, res, nil
	}
	if !errors.Is(res.err, matrix.ErrSingularMatrix) {
		c.log.Debug("gmin stepping failed without shunt", "iterations", res.iterations, "error", res.err)
		return conv, res, nil
	}

	// Without the shunt the system stays singular (a floating node);
	// keep the floor solution.
	copy(x, floor)
	c.log.Warn("keeping gmin floor solution", "gshunt", c.cfg.GminFloor, "error", res.err)
	conv.Gshunt = c.cfg.GminFloor
	conv.Residual = floorResidual
	return conv, newtonResult{iterations: res.iterations, converged: true}, nil
}

func (c *continuation) sourceStepping(ctx context.Context, x []float64, status *device.CircuitStatus) (Convergence, newtonResult, error) {
	conv := Convergence{Strategy: StrategySource}
	scale := status.SourceScale
	defer func() { status.SourceScale = scale }()

	var res newtonResult
	var err error
	steps := c.cfg.SourceSteps
	for k := 1; k <= steps; k++ {
		lv := level{strategy: StrategySource, k: k, value: float64(k) / float64(steps)}
		status.SourceScale = scale * lv.value
		res, err = c.nr.solve(ctx, x, status, 0)
		conv.Iterations += res.iterations
		if err != nil {
			return conv, res, err
		}
		if !res.converged {
			c.log.Debug("source stepping failed", "level", lv.k, "scale", lv.value, "error", res.err)
			return conv, res, nil
		}
		conv.Levels++
		conv.Residual = res.residual
	}
	return conv, res, nil
}
