package operators

import "fmt"

func checkStencil(n int, h float64) error {
	if n < 3 {
		return fmt.Errorf("%w: derivative operator needs at least 3 points, got %d", ErrSizeMismatch, n)
	}
	if !(h > 0) {
		return fmt.Errorf("operators: grid spacing must be positive, got %v", h)
	}
	return nil
}

// DZero is the centred first derivative, one-sided at the edges.
func DZero(n int, h float64) (*Tridiagonal, error) {
	if err := checkStencil(n, h); err != nil {
		return nil, err
	}
	t := newTridiagonal(n)
	t.SetFirstRow(-1/h, 1/h)
	t.SetMidRows(-1/(2*h), 0, 1/(2*h))
	t.SetLastRow(-1/h, 1/h)
	return t, nil
}

// DPlus is the forward first derivative.
func DPlus(n int, h float64) (*Tridiagonal, error) {
	if err := checkStencil(n, h); err != nil {
		return nil, err
	}
	t := newTridiagonal(n)
	t.SetFirstRow(-1/h, 1/h)
	t.SetMidRows(0, -1/h, 1/h)
	t.SetLastRow(-1/h, 1/h)
	return t, nil
}

// DMinus is the backward first derivative.
func DMinus(n int, h float64) (*Tridiagonal, error) {
	if err := checkStencil(n, h); err != nil {
		return nil, err
	}
	t := newTridiagonal(n)
	t.SetFirstRow(-1/h, 1/h)
	t.SetMidRows(-1/h, 1/h, 0)
	t.SetLastRow(-1/h, 1/h)
	return t, nil
}

// DPlusMinus is the centred second derivative. Edge rows are zero and are
// expected to be fixed by boundary conditions.
func DPlusMinus(n int, h float64) (*Tridiagonal, error) {
	if err := checkStencil(n, h); err != nil {
		return nil, err
	}
	t := newTridiagonal(n)
	t.SetFirstRow(0, 0)
	t.SetMidRows(1/(h*h), -2/(h*h), 1/(h*h))
	t.SetLastRow(0, 0)
	return t, nil
}
