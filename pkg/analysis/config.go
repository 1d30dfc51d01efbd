package analysis

import (
	"log/slog"
	"math"

	"github.com/edp1096/mna-spice/internal/consts"
	"github.com/edp1096/mna-spice/pkg/matrix"
	"github.com/edp1096/mna-spice/pkg/util"
	"github.com/pkg/errors"
)

// Config holds solver tolerances and strategies. Start from DefaultConfig;
// the zero value disables both continuation strategies.
type Config struct {
	RelTol  float64 // relative Newton tolerance
	VoltTol float64 // absolute tolerance on node voltages (V)
	AbsTol  float64 // absolute tolerance on branch currents (A)
	MaxIter int     // Newton iterations per attempt

	Gmin float64 // conductance across nonlinear junctions

	GminStepping bool
	GminStart    float64
	GminFactor   float64
	GminSteps    int
	GminFloor    float64

	SourceStepping bool
	SourceSteps    int

	Method util.IntegrationMethod
	LTETol float64
	HMin   float64 // 0 derives from the maximum step
	HMax   float64 // 0 uses the command's max step or Stop/50
	HInit  float64 // 0 uses Step/10

	Solver       matrix.Kind
	MaxCondition float64

	Temp float64 // K

	// Workers bounds concurrent runs in RunAll; 0 means GOMAXPROCS.
	Workers int

	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		RelTol:  1e-3,
		VoltTol: 1e-6,
		AbsTol:  1e-12,
		MaxIter: 100,

		Gmin: 1e-12,

		GminStepping: true,
		GminStart:    1e-2,
		GminFactor:   0.1,
		GminSteps:    10,
		GminFloor:    1e-12,

		SourceStepping: true,
		SourceSteps:    10,

		Method: util.TrapezoidalMethod,
		LTETol: 1e-3,

		Solver:       matrix.DenseKind,
		MaxCondition: matrix.DefaultMaxCondition,

		Temp: consts.REFTEMP,
	}
}

func (c *Config) validate() error {
	check := func(name string, v float64, ok bool) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || !ok {
			return errors.Wrapf(ErrInvalidAnalysis, "config: bad %s %g", name, v)
		}
		return nil
	}
	for _, err := range []error{
		check("reltol", c.RelTol, c.RelTol > 0),
		check("volttol", c.VoltTol, c.VoltTol > 0),
		check("abstol", c.AbsTol, c.AbsTol > 0),
		check("maxiter", float64(c.MaxIter), c.MaxIter > 0),
		check("gmin", c.Gmin, c.Gmin >= 0),
		check("lte tolerance", c.LTETol, c.LTETol > 0),
		check("hmin", c.HMin, c.HMin >= 0),
		check("hmax", c.HMax, c.HMax >= 0),
		check("hinit", c.HInit, c.HInit >= 0),
		check("temp", c.Temp, c.Temp > 0),
	} {
		if err != nil {
			return err
		}
	}
	if c.GminStepping {
		if err := check("gmin factor", c.GminFactor, c.GminFactor > 0 && c.GminFactor < 1); err != nil {
			return err
		}
		if err := check("gmin start", c.GminStart, c.GminStart > c.GminFloor && c.GminFloor > 0); err != nil {
			return err
		}
		if err := check("gmin steps", float64(c.GminSteps), c.GminSteps > 0); err != nil {
			return err
		}
	}
	if c.SourceStepping {
		if err := check("source steps", float64(c.SourceSteps), c.SourceSteps > 0); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}
