package matrix

import (
	"math"
	"math/cmplx"
	"slices"
	"testing"

	"github.com/pkg/errors"
)

// divider stamps a 1 V source on node 1 feeding 1k then 2k to ground.
// Unknowns: V1, V2, I(V).
func divider(isComplex bool) *System {
	sys := NewSystem(3, isComplex)
	g1, g2 := 1e-3, 0.5e-3
	sys.AddElement(1, 1, g1)
	sys.AddElement(1, 2, -g1)
	sys.AddElement(2, 1, -g1)
	sys.AddElement(2, 2, g1+g2)
	sys.AddElement(1, 3, 1)
	sys.AddElement(3, 1, 1)
	sys.AddRHS(3, 1)
	return sys
}

func TestSolversAgreeOnDivider(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
	}{
		{"dense", DenseKind},
		{"sparse", SparseKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSolver(tt.kind, 3, 0)
			defer s.Close()

			sys := divider(false)
			// Second pass exercises the cached structure.
			for pass := 0; pass < 2; pass++ {
				x, err := s.Solve(sys)
				if err != nil {
					t.Fatalf("pass %d: %v", pass, err)
				}
				if math.Abs(x[2]-2.0/3.0) > 1e-12 {
					t.Errorf("pass %d: V2 = %g, want 2/3", pass, x[2])
				}
				if math.Abs(x[3]+1.0/3000.0) > 1e-12 {
					t.Errorf("pass %d: I(V) = %g, want -1/3000", pass, x[3])
				}
			}
		})
	}
}

func TestSolveComplexRC(t *testing.T) {
	// 1 V source, 1k series, 1u shunt at omega = 1/RC.
	omega := 1000.0
	for _, kind := range []Kind{DenseKind, SparseKind} {
		t.Run(kind.String(), func(t *testing.T) {
			sys := NewSystem(3, true)
			g := 1e-3
			sys.AddElement(1, 1, g)
			sys.AddElement(1, 2, -g)
			sys.AddElement(2, 1, -g)
			sys.AddElement(2, 2, g)
			sys.AddComplexElement(2, 2, 0, omega*1e-6)
			sys.AddElement(1, 3, 1)
			sys.AddElement(3, 1, 1)
			sys.AddComplexRHS(3, 1, 0)

			s := NewSolver(kind, 3, 0)
			defer s.Close()
			x, err := s.SolveComplex(sys)
			if err != nil {
				t.Fatal(err)
			}
			want := 1 / complex(1, 1)
			if cmplx.Abs(x[2]-want) > 1e-12 {
				t.Errorf("V2 = %v, want %v", x[2], want)
			}
		})
	}
}

func TestDenseSingular(t *testing.T) {
	sys := NewSystem(2, false)
	sys.AddElement(1, 1, 1)
	sys.AddRHS(1, 1)
	sys.AddElement(2, 2, 0)

	_, err := NewDense(2, DefaultMaxCondition).Solve(sys)
	if !errors.Is(err, ErrSingularMatrix) {
		t.Fatalf("err = %v, want ErrSingularMatrix", err)
	}

	_, err = NewDense(2, DefaultMaxCondition).SolveComplex(sys)
	if !errors.Is(err, ErrSingularMatrix) {
		t.Fatalf("complex err = %v, want ErrSingularMatrix", err)
	}
}

func TestSparseFallsBackOnSingular(t *testing.T) {
	sys := NewSystem(2, false)
	sys.AddElement(1, 1, 1)
	sys.AddElement(2, 2, 0)

	s := NewSparse(2, NewDense(2, DefaultMaxCondition))
	defer s.Close()
	if _, err := s.Solve(sys); !errors.Is(err, ErrSingularMatrix) {
		t.Fatalf("err = %v, want ErrSingularMatrix", err)
	}
	if s.Fallbacks != 1 {
		t.Errorf("fallbacks = %d, want 1", s.Fallbacks)
	}
}

func TestDenseIllConditioned(t *testing.T) {
	sys := NewSystem(2, false)
	sys.AddElement(1, 1, 1)
	sys.AddElement(2, 2, 1e-20)
	sys.AddRHS(1, 1)

	_, err := NewDense(2, 1e12).Solve(sys)
	if !errors.Is(err, ErrIllConditioned) {
		t.Fatalf("err = %v, want ErrIllConditioned", err)
	}
}

func TestSolveReusesBuffers(t *testing.T) {
	sys := divider(false)

	d := NewDense(3, DefaultMaxCondition)
	first, err := d.Solve(sys)
	if err != nil {
		t.Fatal(err)
	}
	sys.AddRHS(3, 1) // 2 V
	second, err := d.Solve(sys)
	if err != nil {
		t.Fatal(err)
	}
	if &first[0] != &second[0] {
		t.Error("dense solve allocated a fresh solution")
	}
	if math.Abs(second[2]-4.0/3.0) > 1e-12 {
		t.Errorf("V2 = %g after the rhs changed, want 4/3", second[2])
	}

	s := NewSparse(3, NewDense(3, DefaultMaxCondition))
	defer s.Close()
	rhs := slices.Clone(sys.rhs)
	x, err := s.Solve(sys)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(sys.rhs, rhs) {
		t.Errorf("sparse solve changed the rhs to %v", sys.rhs)
	}
	if s.Fallbacks != 0 || math.Abs(x[2]-4.0/3.0) > 1e-12 {
		t.Errorf("sparse V2 = %g with %d fallbacks", x[2], s.Fallbacks)
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("Sparse"); err != nil || k != SparseKind {
		t.Errorf("ParseKind(Sparse) = %v, %v", k, err)
	}
	if _, err := ParseKind("klu"); err == nil {
		t.Error("ParseKind(klu) should fail")
	}
}
