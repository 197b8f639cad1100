package operators

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/lapack/gonum"
)

// TimeSetter regenerates the coefficients of a time-dependent operator.
type TimeSetter interface {
	SetTime(t float64, L *Tridiagonal)
}

// Tridiagonal is a tridiagonal operator of size n. Lower and Upper have
// n-1 entries.
type Tridiagonal struct {
	Lower []float64
	Diag  []float64
	Upper []float64

	timeSetter TimeSetter
}

var _ Operator[*Tridiagonal] = (*Tridiagonal)(nil)

var lapack gonum.Implementation

func checkSize(n int) error {
	if n < 2 {
		return fmt.Errorf("%w: tridiagonal operator needs at least 2 rows, got %d", ErrSizeMismatch, n)
	}
	return nil
}

// NewTridiagonal allocates a zero operator of the given size, which must be
// at least 2.
func NewTridiagonal(size int) (*Tridiagonal, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	return newTridiagonal(size), nil
}

func newTridiagonal(size int) *Tridiagonal {
	return &Tridiagonal{
		Lower: make([]float64, size-1),
		Diag:  make([]float64, size),
		Upper: make([]float64, size-1),
	}
}

// NewTridiagonalFromDiagonals copies the three diagonals into a new operator.
func NewTridiagonalFromDiagonals(lower, diag, upper []float64) (*Tridiagonal, error) {
	n := len(diag)
	if err := checkSize(n); err != nil {
		return nil, err
	}
	if len(lower) != n-1 || len(upper) != n-1 {
		return nil, fmt.Errorf("%w: diagonal sizes %d/%d/%d", ErrSizeMismatch, len(lower), n, len(upper))
	}
	t := newTridiagonal(n)
	copy(t.Lower, lower)
	copy(t.Diag, diag)
	copy(t.Upper, upper)
	return t, nil
}

// Identity returns the identity operator of the given size.
func Identity(size int) (*Tridiagonal, error) {
	t, err := NewTridiagonal(size)
	if err != nil {
		return nil, err
	}
	for i := range t.Diag {
		t.Diag[i] = 1
	}
	return t, nil
}

func (t *Tridiagonal) Size() int { return len(t.Diag) }

func (t *Tridiagonal) IsTimeDependent() bool { return t.timeSetter != nil }

// WithTimeSetter makes the operator time dependent.
func (t *Tridiagonal) WithTimeSetter(ts TimeSetter) *Tridiagonal {
	t.timeSetter = ts
	return t
}

func (t *Tridiagonal) SetTime(time float64) {
	if t.timeSetter != nil {
		t.timeSetter.SetTime(time, t)
	}
}

func (t *Tridiagonal) SetFirstRow(b, c float64) {
	t.Diag[0] = b
	t.Upper[0] = c
}

func (t *Tridiagonal) SetMidRow(i int, a, b, c float64) {
	t.Lower[i-1] = a
	t.Diag[i] = b
	t.Upper[i] = c
}

func (t *Tridiagonal) SetMidRows(a, b, c float64) {
	for i := 1; i < t.Size()-1; i++ {
		t.SetMidRow(i, a, b, c)
	}
}

func (t *Tridiagonal) SetLastRow(a, b float64) {
	n := t.Size()
	t.Lower[n-2] = a
	t.Diag[n-1] = b
}

// Clone returns a deep copy; the time setter is shared.
func (t *Tridiagonal) Clone() *Tridiagonal {
	c := &Tridiagonal{
		Lower:      make([]float64, len(t.Lower)),
		Diag:       make([]float64, len(t.Diag)),
		Upper:      make([]float64, len(t.Upper)),
		timeSetter: t.timeSetter,
	}
	copy(c.Lower, t.Lower)
	copy(c.Diag, t.Diag)
	copy(c.Upper, t.Upper)
	return c
}

// IdentityPlus returns I + c*t. The result is not time dependent: it is a
// snapshot of t at its current time.
func (t *Tridiagonal) IdentityPlus(c float64) *Tridiagonal {
	r := newTridiagonal(t.Size())
	floats.AddScaled(r.Lower, c, t.Lower)
	floats.AddScaled(r.Upper, c, t.Upper)
	for i := range r.Diag {
		r.Diag[i] = 1
	}
	floats.AddScaled(r.Diag, c, t.Diag)
	return r
}

// Add returns t + o.
func (t *Tridiagonal) Add(o *Tridiagonal) (*Tridiagonal, error) {
	if t.Size() != o.Size() {
		return nil, fmt.Errorf("%w: %d vs %d", ErrSizeMismatch, t.Size(), o.Size())
	}
	r := t.Clone()
	r.timeSetter = nil
	floats.Add(r.Lower, o.Lower)
	floats.Add(r.Diag, o.Diag)
	floats.Add(r.Upper, o.Upper)
	return r, nil
}

// Scale returns c*t.
func (t *Tridiagonal) Scale(c float64) *Tridiagonal {
	r := t.Clone()
	r.timeSetter = nil
	floats.Scale(c, r.Lower)
	floats.Scale(c, r.Diag)
	floats.Scale(c, r.Upper)
	return r
}

func (t *Tridiagonal) Apply(v []float64) ([]float64, error) {
	n := t.Size()
	if len(v) != n {
		return nil, fmt.Errorf("%w: operator size %d, vector size %d", ErrSizeMismatch, n, len(v))
	}
	out := make([]float64, n)
	lapack.Dlagtm(blas.NoTrans, n, 1, 1, t.Lower, t.Diag, t.Upper, v, 1, 0, out, 1)
	return out, nil
}

// SolveFor solves t*x = rhs by Gaussian elimination with partial pivoting.
// The operator is left untouched.
func (t *Tridiagonal) SolveFor(rhs []float64) ([]float64, error) {
	n := t.Size()
	if len(rhs) != n {
		return nil, fmt.Errorf("%w: operator size %d, rhs size %d", ErrSizeMismatch, n, len(rhs))
	}
	lower := append([]float64(nil), t.Lower...)
	diag := append([]float64(nil), t.Diag...)
	upper := append([]float64(nil), t.Upper...)
	x := append([]float64(nil), rhs...)
	if !lapack.Dgtsv(n, 1, lower, diag, upper, x, 1) {
		return nil, fmt.Errorf("%w: operator of size %d", ErrSingular, n)
	}
	return x, nil
}
