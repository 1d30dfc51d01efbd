package analysis

import (
	"context"
	"math"

	"github.com/edp1096/mna-spice/pkg/circuit"
	"github.com/edp1096/mna-spice/pkg/device"
)

// newton runs undamped Newton-Raphson on one MNA.
type newton struct {
	mna *circuit.MNA
	cfg *Config
}

type newtonResult struct {
	iterations int
	residual   float64
	converged  bool
	err        error // last solver error
}

// solve iterates from x in place. The returned error is fatal (context or
// stamping); solver failures and the iteration cap come back in the
// result with converged false.
func (nr *newton) solve(ctx context.Context, x []float64, status *device.CircuitStatus, gshunt float64) (newtonResult, error) {
	var res newtonResult
	layout := nr.mna.Layout()
	linear := layout.Linear()

	for res.iterations < nr.cfg.MaxIter {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.iterations++

		status.X = x
		status.Limited = 0
		if err := nr.mna.Load(status, gshunt); err != nil {
			return res, err
		}
		next, err := nr.mna.Solve()
		if err != nil {
			res.err = err
			return res, nil
		}

		converged := status.Limited == 0
		res.residual = 0
		for i := 1; i < len(next); i++ {
			abstol := nr.cfg.AbsTol
			if layout.IsVoltage(i) {
				abstol = nr.cfg.VoltTol
			}
			dx := math.Abs(next[i] - x[i])
			res.residual = math.Max(res.residual, dx)
			if dx > abstol+nr.cfg.RelTol*math.Abs(next[i]) {
				converged = false
			}
		}
		copy(x, next)

		if linear || converged {
			res.converged = true
			if linear {
				res.residual = 0
			}
			return res, nil
		}
	}
	return res, nil
}
