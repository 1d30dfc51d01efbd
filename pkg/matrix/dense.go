package matrix

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Dense solves systems by LU with partial pivoting. Real systems go through
// gonum; complex systems through an in-place elimination on a row-major
// buffer.
type Dense struct {
	size         int
	maxCondition float64

	a  *mat.Dense
	b  *mat.VecDense
	x  *mat.VecDense
	lu mat.LU

	ca []complex128
	cb []complex128

	solution  []float64
	csolution []complex128
}

func NewDense(size int, maxCondition float64) *Dense {
	return &Dense{
		size:         size,
		maxCondition: maxCondition,
		a:            mat.NewDense(size, size, nil),
		b:            mat.NewVecDense(size, nil),
		x:            mat.NewVecDense(size, nil),
		solution:     make([]float64, size+1),
	}
}

func (d *Dense) Solve(sys *System) ([]float64, error) {
	if sys.Size != d.size {
		return nil, errors.Errorf("system size %d does not match solver size %d", sys.Size, d.size)
	}

	d.a.Zero()
	for k, e := range sys.entries {
		d.a.Set(e.Row-1, e.Col-1, sys.real[k])
	}
	for i := 1; i <= d.size; i++ {
		d.b.SetVec(i-1, sys.rhs[i])
	}

	d.lu.Factorize(d.a)
	if logDet, _ := d.lu.LogDet(); math.IsInf(logDet, -1) || math.IsNaN(logDet) {
		return nil, ErrSingularMatrix
	}
	cond := d.lu.Cond()
	if math.IsInf(cond, 1) {
		return nil, ErrSingularMatrix
	}
	if cond > d.maxCondition {
		return nil, errors.Wrapf(ErrIllConditioned, "condition number %.3g", cond)
	}

	if err := d.lu.SolveVecTo(d.x, false, d.b); err != nil {
		var c mat.Condition
		if errors.As(err, &c) {
			return nil, errors.Wrapf(ErrIllConditioned, "condition number %.3g", float64(c))
		}
		return nil, errors.Wrap(err, "dense solve")
	}

	for i := 0; i < d.size; i++ {
		d.solution[i+1] = d.x.AtVec(i)
	}
	if err := checkFinite(d.solution); err != nil {
		return nil, err
	}
	return d.solution, nil
}

func (d *Dense) SolveComplex(sys *System) ([]complex128, error) {
	n := d.size
	if sys.Size != n {
		return nil, errors.Errorf("system size %d does not match solver size %d", sys.Size, n)
	}
	if d.ca == nil {
		d.ca = make([]complex128, n*n)
		d.cb = make([]complex128, n)
		d.csolution = make([]complex128, n+1)
	}
	clear(d.ca)
	for k, e := range sys.entries {
		d.ca[(e.Row-1)*n+e.Col-1] = sys.Value(k)
	}
	for i := 0; i < n; i++ {
		d.cb[i] = sys.RHSAt(i + 1)
	}

	a, b := d.ca, d.cb
	maxPivot, minPivot := 0.0, math.Inf(1)
	for col := 0; col < n; col++ {
		p, best := col, cmplx.Abs(a[col*n+col])
		for r := col + 1; r < n; r++ {
			if v := cmplx.Abs(a[r*n+col]); v > best {
				p, best = r, v
			}
		}
		if best == 0 {
			return nil, ErrSingularMatrix
		}
		maxPivot = math.Max(maxPivot, best)
		minPivot = math.Min(minPivot, best)

		if p != col {
			for c := 0; c < n; c++ {
				a[col*n+c], a[p*n+c] = a[p*n+c], a[col*n+c]
			}
			b[col], b[p] = b[p], b[col]
		}

		pivot := a[col*n+col]
		for r := col + 1; r < n; r++ {
			f := a[r*n+col] / pivot
			if f == 0 {
				continue
			}
			for c := col; c < n; c++ {
				a[r*n+c] -= f * a[col*n+c]
			}
			b[r] -= f * b[col]
		}
	}
	// Pivot growth ratio as a cheap conditioning estimate.
	if maxPivot/minPivot > d.maxCondition {
		return nil, errors.Wrapf(ErrIllConditioned, "pivot ratio %.3g", maxPivot/minPivot)
	}

	solution := d.csolution
	for r := n - 1; r >= 0; r-- {
		sum := b[r]
		for c := r + 1; c < n; c++ {
			sum -= a[r*n+c] * solution[c+1]
		}
		solution[r+1] = sum / a[r*n+r]
	}
	if err := checkFiniteComplex(solution); err != nil {
		return nil, err
	}
	return solution, nil
}

func (d *Dense) Close() {}
