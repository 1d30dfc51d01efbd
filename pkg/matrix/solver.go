package matrix

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Solver factors and solves a System. Solutions are 1-based with slot 0
// holding the ground reference. A returned slice may be owned by the
// solver and is only valid until its next call.
type Solver interface {
	Solve(sys *System) ([]float64, error)
	SolveComplex(sys *System) ([]complex128, error)
	Close()
}

type Kind int

const (
	DenseKind Kind = iota
	SparseKind
)

func (k Kind) String() string {
	if k == SparseKind {
		return "sparse"
	}
	return "dense"
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "dense", "":
		return DenseKind, nil
	case "sparse":
		return SparseKind, nil
	}
	return DenseKind, errors.Errorf("unknown solver kind %q", s)
}

const DefaultMaxCondition = 1e15

// NewSolver returns a backend for systems of the given size.
// maxCondition <= 0 selects DefaultMaxCondition.
func NewSolver(kind Kind, size int, maxCondition float64) Solver {
	if maxCondition <= 0 {
		maxCondition = DefaultMaxCondition
	}
	dense := NewDense(size, maxCondition)
	if kind == SparseKind {
		return NewSparse(size, dense)
	}
	return dense
}

func checkFinite(x []float64) error {
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrIllConditioned, "non-finite solution at unknown %d", i)
		}
	}
	return nil
}

func checkFiniteComplex(x []complex128) error {
	for i, v := range x {
		if math.IsNaN(real(v)) || math.IsNaN(imag(v)) || math.IsInf(real(v), 0) || math.IsInf(imag(v), 0) {
			return errors.Wrapf(ErrIllConditioned, "non-finite solution at unknown %d", i)
		}
	}
	return nil
}
