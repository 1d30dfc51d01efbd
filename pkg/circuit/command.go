package circuit

import "fmt"

// Command is an analysis request attached to a circuit.
type Command interface {
	String() string
	command()
}

// OP computes the DC operating point, optionally from a caller guess
// (a solution vector with index 0 for ground).
type OP struct {
	Guess []float64
}

// Sweep steps an independent source over start + i*step.
type Sweep struct {
	Source string
	Start  float64
	Stop   float64
	Step   float64
}

// DC sweeps Sweep, optionally nested inside an outer sweep of a second source.
type DC struct {
	Sweep
	Outer *Sweep
}

type SweepType int

const (
	DEC SweepType = iota
	OCT
	LIN
)

func (s SweepType) String() string {
	switch s {
	case OCT:
		return "OCT"
	case LIN:
		return "LIN"
	default:
		return "DEC"
	}
}

// AC takes Points per decade/octave, or in total for LIN.
type AC struct {
	Type   SweepType
	Points int
	FStart float64
	FStop  float64
}

// TRAN simulates from 0 to Stop. Points before Start are computed but not
// recorded. MaxStep 0 lets the engine choose. UIC skips the operating point.
type TRAN struct {
	Step    float64
	Stop    float64
	Start   float64
	MaxStep float64
	UIC     bool
}

func (OP) command()   {}
func (DC) command()   {}
func (AC) command()   {}
func (TRAN) command() {}

func (OP) String() string { return ".op" }

func (d DC) String() string {
	s := fmt.Sprintf(".dc %s %g %g %g", d.Source, d.Start, d.Stop, d.Step)
	if d.Outer != nil {
		s += fmt.Sprintf(" %s %g %g %g", d.Outer.Source, d.Outer.Start, d.Outer.Stop, d.Outer.Step)
	}
	return s
}

func (a AC) String() string {
	return fmt.Sprintf(".ac %s %d %g %g", a.Type, a.Points, a.FStart, a.FStop)
}

func (t TRAN) String() string {
	s := fmt.Sprintf(".tran %g %g", t.Step, t.Stop)
	if t.Start > 0 || t.MaxStep > 0 {
		s += fmt.Sprintf(" %g", t.Start)
	}
	if t.MaxStep > 0 {
		s += fmt.Sprintf(" %g", t.MaxStep)
	}
	if t.UIC {
		s += " uic"
	}
	return s
}
