package matrix

import "fmt"

// Entry is one structural nonzero of a System.
type Entry struct {
	Row, Col int
}

// System accumulates an MNA system. Each (row, col) pair touched by a stamp
// gets a value slot on first use; Reset zeroes values and keeps the slots so
// solver backends can cache per-slot handles across Newton iterations.
type System struct {
	Size int

	index   map[Entry]int
	entries []Entry
	real    []float64
	imag    []float64
	rhs     []float64
	rhsImag []float64

	isComplex bool
}

func NewSystem(size int, isComplex bool) *System {
	return &System{
		Size:      size,
		index:     make(map[Entry]int, 4*size),
		rhs:       make([]float64, size+1),
		rhsImag:   make([]float64, size+1),
		isComplex: isComplex,
	}
}

func (s *System) slot(i, j int) int {
	if i > s.Size || j > s.Size || i < 0 || j < 0 {
		panic(fmt.Sprintf("matrix: index out of bounds (i=%d, j=%d, size=%d)", i, j, s.Size))
	}
	e := Entry{i, j}
	if k, ok := s.index[e]; ok {
		return k
	}
	k := len(s.entries)
	s.index[e] = k
	s.entries = append(s.entries, e)
	s.real = append(s.real, 0)
	s.imag = append(s.imag, 0)
	return k
}

func (s *System) AddElement(i, j int, value float64) {
	if i == 0 || j == 0 {
		return
	}
	s.real[s.slot(i, j)] += value
}

func (s *System) AddComplexElement(i, j int, real, imag float64) {
	if i == 0 || j == 0 {
		return
	}
	k := s.slot(i, j)
	s.real[k] += real
	s.imag[k] += imag
}

func (s *System) AddRHS(i int, value float64) {
	if i == 0 {
		return
	}
	s.checkRow(i)
	s.rhs[i] += value
}

func (s *System) AddComplexRHS(i int, real, imag float64) {
	if i == 0 {
		return
	}
	s.checkRow(i)
	s.rhs[i] += real
	s.rhsImag[i] += imag
}

func (s *System) checkRow(i int) {
	if i < 0 || i > s.Size {
		panic(fmt.Sprintf("matrix: RHS index out of bounds (i=%d, size=%d)", i, s.Size))
	}
}

// AddDiagonal adds g to the diagonal of rows from..to inclusive.
func (s *System) AddDiagonal(from, to int, g float64) {
	for i := from; i <= to; i++ {
		s.AddElement(i, i, g)
	}
}

// Reset zeroes all values and right-hand sides, keeping the structure.
func (s *System) Reset() {
	clear(s.real)
	clear(s.imag)
	clear(s.rhs)
	clear(s.rhsImag)
}

func (s *System) IsComplex() bool { return s.isComplex }

// Entries returns the structural nonzeros in slot order. Slot k holds
// Entries()[k]; the returned slice must not be modified.
func (s *System) Entries() []Entry { return s.entries }

// Value returns the accumulated value of slot k.
func (s *System) Value(k int) complex128 { return complex(s.real[k], s.imag[k]) }

// At returns the accumulated value at (i, j), zero when never stamped.
func (s *System) At(i, j int) complex128 {
	k, ok := s.index[Entry{i, j}]
	if !ok {
		return 0
	}
	return s.Value(k)
}

// RHSAt returns the accumulated right-hand side of row i.
func (s *System) RHSAt(i int) complex128 {
	return complex(s.rhs[i], s.rhsImag[i])
}
