package matrix

import (
	"github.com/edp1096/sparse"
	"github.com/pkg/errors"
)

// Sparse solves systems with Markowitz-ordered sparse LU. Element handles
// are fetched once per structural pattern; every solve refills values and
// refactors numerically, reordering when a pivot collapses. Any failure is
// retried on the dense backend.
type Sparse struct {
	size     int
	real     *sparseMatrix
	complex  *sparseMatrix
	fallback *Dense

	csolution []complex128

	// Fallbacks counts solves answered by the dense backend.
	Fallbacks int
}

type sparseMatrix struct {
	m        *sparse.Matrix
	elements []*sparse.Element
}

func NewSparse(size int, fallback *Dense) *Sparse {
	return &Sparse{size: size, fallback: fallback}
}

func newSparseConfig(isComplex bool) *sparse.Configuration {
	return &sparse.Configuration{
		Real:                    true,
		Complex:                 isComplex,
		SeparatedComplexVectors: true,
		Expandable:              true,
		Translate:               false,
		ModifiedNodal:           true,
		TiesMultiplier:          5,
		DefaultPartition:        sparse.AUTO_PARTITION,
		PrinterWidth:            140,
		Annotate:                0,
	}
}

// prepare returns the backend matrix for sys, rebuilding it when the
// structural pattern grew since the last call.
func (s *Sparse) prepare(slot **sparseMatrix, sys *System, isComplex bool) (*sparseMatrix, error) {
	sm := *slot
	if sm != nil && len(sm.elements) == len(sys.entries) {
		return sm, nil
	}
	if sm != nil {
		sm.m.Destroy()
	}

	m, err := sparse.Create(int64(s.size), newSparseConfig(isComplex))
	if err != nil {
		return nil, errors.Wrap(err, "creating sparse matrix")
	}
	// Diagonal elements first so every pivot position exists.
	for i := 1; i <= s.size; i++ {
		m.GetElement(int64(i), int64(i))
	}
	sm = &sparseMatrix{m: m, elements: make([]*sparse.Element, len(sys.entries))}
	for k, e := range sys.entries {
		el := m.GetElement(int64(e.Row), int64(e.Col))
		if el == nil {
			m.Destroy()
			return nil, errors.Errorf("no element at (%d, %d)", e.Row, e.Col)
		}
		sm.elements[k] = el
	}
	*slot = sm
	return sm, nil
}

func (sm *sparseMatrix) load(sys *System, isComplex bool) {
	sm.m.Clear()
	for k, el := range sm.elements {
		el.Real += sys.real[k]
		if isComplex {
			el.Imag += sys.imag[k]
		}
	}
}

func (sm *sparseMatrix) factor(sys *System, isComplex bool) error {
	sm.load(sys, isComplex)
	if err := sm.m.Factor(); err == nil {
		return nil
	}
	// A collapsed pivot under the previous ordering: reorder from scratch.
	sm.m.NeedsOrdering = true
	sm.m.Partitioned = false
	sm.load(sys, isComplex)
	if err := sm.m.Factor(); err != nil {
		return errors.Wrap(ErrSingularMatrix, err.Error())
	}
	return nil
}

func (s *Sparse) Solve(sys *System) ([]float64, error) {
	if sys.Size != s.size {
		return nil, errors.Errorf("system size %d does not match solver size %d", sys.Size, s.size)
	}
	solution, err := s.solveReal(sys)
	if err != nil {
		s.Fallbacks++
		return s.fallback.Solve(sys)
	}
	return solution, nil
}

func (s *Sparse) solveReal(sys *System) ([]float64, error) {
	sm, err := s.prepare(&s.real, sys, false)
	if err != nil {
		return nil, err
	}
	if err := sm.factor(sys, false); err != nil {
		return nil, err
	}
	// The backend reads the right-hand side without modifying it.
	solution, err := sm.m.Solve(sys.rhs)
	if err != nil {
		return nil, errors.Wrap(err, "sparse solve")
	}
	solution[0] = 0
	if err := checkFinite(solution); err != nil {
		return nil, err
	}
	return solution, nil
}

func (s *Sparse) SolveComplex(sys *System) ([]complex128, error) {
	if sys.Size != s.size {
		return nil, errors.Errorf("system size %d does not match solver size %d", sys.Size, s.size)
	}
	solution, err := s.solveComplex(sys)
	if err != nil {
		s.Fallbacks++
		return s.fallback.SolveComplex(sys)
	}
	return solution, nil
}

func (s *Sparse) solveComplex(sys *System) ([]complex128, error) {
	sm, err := s.prepare(&s.complex, sys, true)
	if err != nil {
		return nil, err
	}
	if err := sm.factor(sys, true); err != nil {
		return nil, err
	}
	re, im, err := sm.m.SolveComplex(sys.rhs, sys.rhsImag)
	if err != nil {
		return nil, errors.Wrap(err, "sparse complex solve")
	}
	if s.csolution == nil {
		s.csolution = make([]complex128, s.size+1)
	}
	solution := s.csolution
	for i := 1; i <= s.size; i++ {
		solution[i] = complex(re[i], im[i])
	}
	if err := checkFiniteComplex(solution); err != nil {
		return nil, err
	}
	return solution, nil
}

func (s *Sparse) Close() {
	for _, sm := range []*sparseMatrix{s.real, s.complex} {
		if sm != nil {
			sm.m.Destroy()
		}
	}
	s.real, s.complex = nil, nil
}
