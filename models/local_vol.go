package models

import (
	"fmt"
	"sort"
)

// VolatilitySurface is a local volatility grid, Vols[i][j] being the
// volatility at Times[i] and Strikes[j]. Lookups interpolate bilinearly and
// extrapolate flat outside the grid.
type VolatilitySurface struct {
	Strikes []float64
	Times   []float64
	Vols    [][]float64
}

func NewVolatilitySurface(times, strikes []float64, vols [][]float64) (*VolatilitySurface, error) {
	if len(times) == 0 || len(strikes) == 0 {
		return nil, fmt.Errorf("%w: empty volatility surface", ErrInvalidArgument)
	}
	if !sort.Float64sAreSorted(times) || len(removeDuplicates(times)) != len(times) {
		return nil, fmt.Errorf("%w: surface times must be strictly increasing", ErrInvalidArgument)
	}
	if !sort.Float64sAreSorted(strikes) || len(removeDuplicates(strikes)) != len(strikes) {
		return nil, fmt.Errorf("%w: surface strikes must be strictly increasing", ErrInvalidArgument)
	}
	if len(vols) != len(times) {
		return nil, fmt.Errorf("%w: %d volatility rows for %d times", ErrInvalidArgument, len(vols), len(times))
	}
	for i, row := range vols {
		if len(row) != len(strikes) {
			return nil, fmt.Errorf("%w: row %d has %d volatilities for %d strikes", ErrInvalidArgument, i, len(row), len(strikes))
		}
		for j, v := range row {
			if !(v >= 0) {
				return nil, fmt.Errorf("%w: volatility %v at (%d, %d)", ErrInvalidArgument, v, i, j)
			}
		}
	}
	return &VolatilitySurface{Strikes: strikes, Times: times, Vols: vols}, nil
}

func removeDuplicates(sorted []float64) []float64 {
	if len(sorted) == 0 {
		return sorted
	}
	result := []float64{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			result = append(result, sorted[i])
		}
	}
	return result
}

// bracket returns the indices around x and the interpolation weight of the
// upper one, clamped to the ends of xs.
func bracket(xs []float64, x float64) (int, int, float64) {
	n := len(xs)
	if n == 1 || x <= xs[0] {
		return 0, 0, 0
	}
	if x >= xs[n-1] {
		return n - 1, n - 1, 0
	}
	hi := sort.SearchFloat64s(xs, x)
	if xs[hi] == x {
		return hi, hi, 0
	}
	lo := clamp(hi-1, 0, n-1)
	return lo, hi, (x - xs[lo]) / (xs[hi] - xs[lo])
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Vol implements Volatility.
func (s *VolatilitySurface) Vol(t, strike float64) float64 {
	t0, t1, wt := bracket(s.Times, t)
	k0, k1, wk := bracket(s.Strikes, strike)

	v00 := s.Vols[t0][k0]
	v01 := s.Vols[t0][k1]
	v10 := s.Vols[t1][k0]
	v11 := s.Vols[t1][k1]

	return (1-wt)*(1-wk)*v00 + wt*(1-wk)*v10 + (1-wt)*wk*v01 + wt*wk*v11
}
