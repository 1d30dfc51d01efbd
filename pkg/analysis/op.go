package analysis

import (
	"context"

	"github.com/edp1096/mna-spice/pkg/circuit"
	"github.com/pkg/errors"
)

type OperatingPoint struct {
	BaseAnalysis
	cmd circuit.OP
}

func NewOP(cmd circuit.OP, cfg Config) *OperatingPoint {
	return &OperatingPoint{
		BaseAnalysis: *NewBaseAnalysis(KindOP, cmd, cfg),
		cmd:          cmd,
	}
}

func (op *OperatingPoint) Setup(ckt *circuit.Circuit) error {
	if err := op.setup(ckt); err != nil {
		return err
	}
	if op.cmd.Guess != nil && len(op.cmd.Guess) != op.layout.Size+1 {
		return errors.Wrapf(ErrInvalidAnalysis, "guess has %d entries, want %d", len(op.cmd.Guess), op.layout.Size+1)
	}
	return nil
}

func (op *OperatingPoint) Execute(ctx context.Context) error {
	x := op.zeroVector()
	if op.cmd.Guess != nil {
		copy(x[1:], op.cmd.Guess[1:])
	}

	conv, err := op.operatingPoint(ctx, x, nil, "")
	if err != nil {
		return err
	}
	op.log.Debug("operating point", "iterations", conv.Iterations, "strategy", conv.Strategy.String())
	op.record(x, conv)
	return nil
}
