package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/edp1096/mna-spice/pkg/circuit"
	"github.com/edp1096/mna-spice/pkg/device"
	"github.com/pkg/errors"
)

// maxSweepPoints bounds a single sweep axis.
const maxSweepPoints = 10_000_000

type DCSweep struct {
	BaseAnalysis
	cmd   circuit.DC
	inner sweepAxis
	outer *sweepAxis
}

type sweepAxis struct {
	source string
	device int
	values []float64
}

func NewDCSweep(cmd circuit.DC, cfg Config) *DCSweep {
	return &DCSweep{
		BaseAnalysis: *NewBaseAnalysis(KindDC, cmd, cfg),
		cmd:          cmd,
	}
}

func (dc *DCSweep) Setup(ckt *circuit.Circuit) error {
	if err := dc.setup(ckt); err != nil {
		return err
	}
	inner, err := newSweepAxis(ckt, dc.cmd.Sweep)
	if err != nil {
		return err
	}
	dc.inner = inner
	if dc.cmd.Outer != nil {
		outer, err := newSweepAxis(ckt, *dc.cmd.Outer)
		if err != nil {
			return err
		}
		if outer.device == inner.device {
			return errors.Wrapf(ErrInvalidAnalysis, "dc: %s swept twice", outer.source)
		}
		dc.outer = &outer
	}
	return nil
}

func newSweepAxis(ckt *circuit.Circuit, sw circuit.Sweep) (sweepAxis, error) {
	dev, idx, ok := ckt.Device(sw.Source)
	if !ok {
		return sweepAxis{}, errors.Wrapf(ErrInvalidAnalysis, "dc: unknown source %q", sw.Source)
	}
	if _, ok := dev.(device.Source); !ok {
		return sweepAxis{}, errors.Wrapf(ErrInvalidAnalysis, "dc: %s is not an independent source", sw.Source)
	}
	values, err := sweepPoints(sw.Start, sw.Stop, sw.Step)
	if err != nil {
		return sweepAxis{}, errors.Wrapf(err, "dc: %s", sw.Source)
	}
	return sweepAxis{source: sw.Source, device: idx, values: values}, nil
}

// sweepPoints returns start + i*step up to stop. The sign of step follows
// the sweep direction.
func sweepPoints(start, stop, step float64) ([]float64, error) {
	for _, v := range []float64{start, stop, step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Wrapf(ErrInvalidAnalysis, "non-finite sweep bound %g", v)
		}
	}
	span := stop - start
	if span == 0 {
		return []float64{start}, nil
	}
	if step == 0 {
		return nil, errors.Wrapf(ErrInvalidAnalysis, "zero step from %g to %g", start, stop)
	}
	step = math.Copysign(math.Abs(step), span)

	count := math.Floor(span/step+1e-9) + 1
	if count > maxSweepPoints {
		return nil, errors.Wrapf(ErrInvalidAnalysis, "%g sweep points", count)
	}
	n := int(count)
	values := make([]float64, n)
	for i := range values {
		values[i] = start + float64(i)*step
	}
	return values, nil
}

func (dc *DCSweep) Execute(ctx context.Context) error {
	x := dc.zeroVector()
	conv, err := dc.operatingPoint(ctx, x, nil, "")
	if err != nil {
		return errors.Wrap(err, "dc: initial operating point")
	}
	dc.result.OP = conv

	outer := []float64{math.NaN()}
	if dc.outer != nil {
		outer = dc.outer.values
	}

	overrides := make([]device.Override, 1, 2)
	for _, vo := range outer {
		if dc.outer != nil {
			overrides = append(overrides[:1], device.Override{Device: dc.outer.device, Value: vo})
		}
		for _, vi := range dc.inner.values {
			if err := ctx.Err(); err != nil {
				return err
			}
			overrides[0] = device.Override{Device: dc.inner.device, Value: vi}

			where := fmt.Sprintf("%s=%g", dc.inner.source, vi)
			if dc.outer != nil {
				where += fmt.Sprintf(" %s=%g", dc.outer.source, vo)
			}
			conv, err := dc.operatingPoint(ctx, x, overrides, where)
			if err != nil {
				return err
			}

			dc.result.Sweep1 = append(dc.result.Sweep1, vi)
			if dc.outer != nil {
				dc.result.Sweep2 = append(dc.result.Sweep2, vo)
			}
			dc.record(x, conv)
		}
	}
	return nil
}
