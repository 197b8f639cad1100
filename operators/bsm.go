package operators

import (
	"fmt"
	"math"
)

// BlackScholesCoefficients supplies the rates and local volatility a
// Black-Scholes-Merton operator is built from.
type BlackScholesCoefficients interface {
	RiskFreeForward(t float64) float64
	DividendForward(t float64) float64
	LocalVolatility(t, s float64) float64
}

// NewBSMOperator builds the constant-coefficient BSM operator on a uniform
// log grid with spacing dx. Edge rows are left to the boundary conditions.
func NewBSMOperator(n int, dx, r, q, sigma float64) (*Tridiagonal, error) {
	if err := checkStencil(n, dx); err != nil {
		return nil, err
	}
	sigma2 := sigma * sigma
	nu := r - q - sigma2/2
	pd := -(sigma2/dx - nu) / (2 * dx)
	pu := -(sigma2/dx + nu) / (2 * dx)
	pm := sigma2/(dx*dx) + r

	t := newTridiagonal(n)
	t.SetMidRows(pd, pm, pu)
	return t, nil
}

// NewBSMOperatorFromProcess builds the BSM operator on an arbitrary price
// grid, evaluating rates and volatility at time t.
func NewBSMOperatorFromProcess(grid []float64, process BlackScholesCoefficients, t float64) (*Tridiagonal, error) {
	g, err := newLogGrid(grid)
	if err != nil {
		return nil, err
	}
	L := newTridiagonal(len(grid))
	g.generate(process, t, L)
	return L, nil
}

// NewBSMTermOperator is the time-dependent version of
// NewBSMOperatorFromProcess: every SetTime regenerates the coefficients.
func NewBSMTermOperator(grid []float64, process BlackScholesCoefficients, t float64) (*Tridiagonal, error) {
	L, err := NewBSMOperatorFromProcess(grid, process, t)
	if err != nil {
		return nil, err
	}
	g, _ := newLogGrid(grid)
	return L.WithTimeSetter(&bsmTimeSetter{grid: g, process: process}), nil
}

type logGrid struct {
	prices []float64
	x      []float64
}

func newLogGrid(grid []float64) (*logGrid, error) {
	if len(grid) < 3 {
		return nil, fmt.Errorf("%w: grid needs at least 3 points, got %d", ErrSizeMismatch, len(grid))
	}
	x := make([]float64, len(grid))
	for i, s := range grid {
		if !(s > 0) {
			return nil, fmt.Errorf("operators: grid prices must be positive, got %v at %d", s, i)
		}
		x[i] = math.Log(s)
		if i > 0 && x[i] <= x[i-1] {
			return nil, fmt.Errorf("operators: grid must be strictly increasing at %d", i)
		}
	}
	prices := make([]float64, len(grid))
	copy(prices, grid)
	return &logGrid{prices: prices, x: x}, nil
}

func (g *logGrid) generate(process BlackScholesCoefficients, t float64, L *Tridiagonal) {
	r := process.RiskFreeForward(t)
	q := process.DividendForward(t)
	for i := 1; i < len(g.x)-1; i++ {
		sigma := process.LocalVolatility(t, g.prices[i])
		sigma2 := sigma * sigma
		nu := r - q - sigma2/2
		dxm := g.x[i] - g.x[i-1]
		dxp := g.x[i+1] - g.x[i]
		dx := dxm + dxp
		pd := -(sigma2/dxm - nu) / dx
		pu := -(sigma2/dxp + nu) / dx
		pm := sigma2/(dxm*dxp) + r
		L.SetMidRow(i, pd, pm, pu)
	}
}

type bsmTimeSetter struct {
	grid    *logGrid
	process BlackScholesCoefficients
}

func (s *bsmTimeSetter) SetTime(t float64, L *Tridiagonal) {
	s.grid.generate(s.process, t, L)
}
