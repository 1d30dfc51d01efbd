package analysis

import (
	"math"
	"math/cmplx"
	"slices"
	"strings"

	"github.com/google/uuid"
)

type Kind int

const (
	KindOP Kind = iota
	KindDC
	KindAC
	KindTRAN
)

func (k Kind) String() string {
	switch k {
	case KindDC:
		return "dc"
	case KindAC:
		return "ac"
	case KindTRAN:
		return "tran"
	default:
		return "op"
	}
}

// Strategy names how a point finally converged.
type Strategy int

const (
	StrategyNewton Strategy = iota
	StrategyGmin
	StrategySource
)

func (s Strategy) String() string {
	switch s {
	case StrategyGmin:
		return "gmin stepping"
	case StrategySource:
		return "source stepping"
	default:
		return "newton"
	}
}

// Convergence describes the solve of one point.
type Convergence struct {
	Iterations int
	Residual   float64 // largest |dx| of the final iteration
	Strategy   Strategy
	Levels     int     // continuation levels solved
	Gshunt     float64 // shunt left in place, 0 unless gmin stepping stopped at its floor
}

// RunResult is the record of one analysis run. Values holds one solution
// per point without the ground entry, aligned with Names.
type RunResult struct {
	ID       uuid.UUID
	Circuit  string
	Analysis Kind
	Command  string
	Names    []string

	Sweep1    []float64
	Sweep2    []float64
	Frequency []float64
	Time      []float64

	Values  [][]float64
	Phasors [][]complex128

	// Derived holds resistor currents, keyed "I(name)".
	Derived map[string][]float64

	OP          Convergence // initial operating point of DC, AC and TRAN runs
	Convergence []Convergence
	Steps       []float64 // accepted transient step sizes
	Rejected    int

	index map[string]int
}

func newRunResult(kind Kind, ckt, command string, names []string) *RunResult {
	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}
	return &RunResult{
		ID:       uuid.New(),
		Circuit:  ckt,
		Analysis: kind,
		Command:  command,
		Names:    slices.Clone(names),
		Derived:  make(map[string][]float64),
		index:    index,
	}
}

func (r *RunResult) addPoint(x []float64, conv Convergence) {
	r.Values = append(r.Values, slices.Clone(x[1:]))
	r.Convergence = append(r.Convergence, conv)
}

func (r *RunResult) addPhasor(f float64, x []complex128) {
	r.Frequency = append(r.Frequency, f)
	r.Phasors = append(r.Phasors, slices.Clone(x[1:]))
}

func (r *RunResult) addDerived(name string, v float64) {
	r.Derived[name] = append(r.Derived[name], v)
}

// Len returns the number of recorded points.
func (r *RunResult) Len() int {
	if r.Analysis == KindAC {
		return len(r.Phasors)
	}
	return len(r.Values)
}

// Iterations sums Newton iterations over every recorded point.
func (r *RunResult) Iterations() int {
	n := r.OP.Iterations
	for _, c := range r.Convergence {
		n += c.Iterations
	}
	return n
}

// Value returns unknown name at point p.
func (r *RunResult) Value(name string, p int) (float64, bool) {
	s, ok := r.Signal(name)
	if !ok || p < 0 || p >= len(s) {
		return 0, false
	}
	return s[p], true
}

// Phasor returns the complex series of an unknown of an AC run.
func (r *RunResult) Phasor(name string) ([]complex128, bool) {
	i, ok := r.index[name]
	if !ok || r.Analysis != KindAC {
		return nil, false
	}
	out := make([]complex128, len(r.Phasors))
	for p, x := range r.Phasors {
		out[p] = x[i]
	}
	return out, true
}

// Signal returns a named series: an axis (TIME, FREQ, SWEEP1, SWEEP2), an
// unknown (V(node), I(dev)) or a derived resistor current. AC unknowns give
// the magnitude; the suffixes _MAG, _DB, _PHASE, _REAL and _IMAG select
// other views (phase in degrees).
func (r *RunResult) Signal(name string) ([]float64, bool) {
	switch name {
	case "TIME":
		return r.Time, r.Analysis == KindTRAN
	case "FREQ":
		return r.Frequency, r.Analysis == KindAC
	case "SWEEP1":
		return r.Sweep1, r.Analysis == KindDC
	case "SWEEP2":
		return r.Sweep2, r.Analysis == KindDC && r.Sweep2 != nil
	}

	if r.Analysis == KindAC {
		base, view := name, "_MAG"
		for _, suffix := range []string{"_MAG", "_DB", "_PHASE", "_REAL", "_IMAG"} {
			if strings.HasSuffix(name, suffix) {
				base, view = strings.TrimSuffix(name, suffix), suffix
				break
			}
		}
		ph, ok := r.Phasor(base)
		if !ok {
			return nil, false
		}
		out := make([]float64, len(ph))
		for p, v := range ph {
			switch view {
			case "_DB":
				out[p] = 20 * math.Log10(cmplx.Abs(v))
			case "_PHASE":
				out[p] = cmplx.Phase(v) * 180 / math.Pi
			case "_REAL":
				out[p] = real(v)
			case "_IMAG":
				out[p] = imag(v)
			default:
				out[p] = cmplx.Abs(v)
			}
		}
		return out, true
	}

	if i, ok := r.index[name]; ok {
		out := make([]float64, len(r.Values))
		for p, x := range r.Values {
			out[p] = x[i]
		}
		return out, true
	}
	s, ok := r.Derived[name]
	return s, ok
}

// Results returns every series keyed by name, axes included.
func (r *RunResult) Results() map[string][]float64 {
	out := make(map[string][]float64)
	for _, axis := range []string{"TIME", "FREQ", "SWEEP1", "SWEEP2"} {
		if s, ok := r.Signal(axis); ok {
			out[axis] = s
		}
	}
	for _, name := range r.Names {
		if r.Analysis == KindAC {
			out[name+"_MAG"], _ = r.Signal(name + "_MAG")
			out[name+"_PHASE"], _ = r.Signal(name + "_PHASE")
			continue
		}
		out[name], _ = r.Signal(name)
	}
	for name, s := range r.Derived {
		if _, dup := out[name]; !dup {
			out[name] = s
		}
	}
	return out
}
