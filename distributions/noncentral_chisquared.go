// Package distributions provides probability distributions gonum's distuv
// does not ship, built on top of the distuv primitives.
package distributions

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrInvalidArgument = errors.New("distributions: invalid argument")
	ErrNoConvergence   = errors.New("distributions: no convergence")
)

const (
	quantileMaxIterations = 100
	quantileTolerance     = 1e-12

	// above this argument the Bessel series is replaced by the Poisson mixture
	besselSeriesLimit = 50
)

// NonCentralChiSquared is the non-central chi-squared distribution with K
// degrees of freedom and non-centrality Lambda, written as a Poisson(Lambda/2)
// mixture of central chi-squared distributions with K+2j degrees of freedom.
type NonCentralChiSquared struct {
	K      float64
	Lambda float64
}

func NewNonCentralChiSquared(k, lambda float64) (NonCentralChiSquared, error) {
	if !(k > 0) || !(lambda >= 0) || math.IsInf(k, 0) || math.IsInf(lambda, 0) {
		return NonCentralChiSquared{}, fmt.Errorf("%w: degrees of freedom %v, non-centrality %v", ErrInvalidArgument, k, lambda)
	}
	return NonCentralChiSquared{K: k, Lambda: lambda}, nil
}

func (d NonCentralChiSquared) Mean() float64 { return d.K + d.Lambda }

func (d NonCentralChiSquared) Variance() float64 { return 2 * (d.K + 2*d.Lambda) }

// terms returns the Poisson index range carrying all but a negligible part
// of the mixture weight.
func (d NonCentralChiSquared) terms() (int, int) {
	half := d.Lambda / 2
	spread := 10*math.Sqrt(half) + 20
	lo := int(math.Max(0, math.Floor(half-spread)))
	hi := int(math.Ceil(half + spread))
	return lo, hi
}

func (d NonCentralChiSquared) mixture(x float64, f func(distuv.ChiSquared, float64) float64) float64 {
	if d.Lambda == 0 {
		return f(distuv.ChiSquared{K: d.K}, x)
	}
	weights := distuv.Poisson{Lambda: d.Lambda / 2}
	lo, hi := d.terms()
	sum, total := 0.0, 0.0
	for j := lo; j <= hi; j++ {
		w := weights.Prob(float64(j))
		if w == 0 {
			continue
		}
		total += w
		sum += w * f(distuv.ChiSquared{K: d.K + 2*float64(j)}, x)
	}
	return sum / total
}

func (d NonCentralChiSquared) CDF(x float64) float64 {
	if x <= 0 {
		return 0
	}
	if math.IsInf(x, 1) {
		return 1
	}
	return math.Min(1, d.mixture(x, distuv.ChiSquared.CDF))
}

func (d NonCentralChiSquared) Prob(x float64) float64 {
	if x < 0 {
		return 0
	}
	if z := math.Sqrt(d.Lambda * x); d.Lambda > 0 && x > 0 && z <= besselSeriesLimit {
		nu := d.K/2 - 1
		return 0.5 * math.Exp(-(x+d.Lambda)/2) * math.Pow(x/d.Lambda, nu/2) * BesselI(nu, z)
	}
	return d.mixture(x, distuv.ChiSquared.Prob)
}

// Quantile inverts the CDF with a Newton iteration safeguarded by bisection.
func (d NonCentralChiSquared) Quantile(p float64) (float64, error) {
	switch {
	case math.IsNaN(p) || p < 0 || p > 1:
		return math.NaN(), fmt.Errorf("%w: probability %v", ErrInvalidArgument, p)
	case p == 0:
		return 0, nil
	case p == 1:
		return math.Inf(1), nil
	}
	if d.Lambda == 0 {
		return distuv.ChiSquared{K: d.K}.Quantile(p), nil
	}

	lo := 0.0
	hi := d.Mean() + 10*math.Sqrt(d.Variance())
	for i := 0; d.CDF(hi) < p; i++ {
		if i == quantileMaxIterations {
			return math.NaN(), fmt.Errorf("%w: could not bracket quantile %v", ErrNoConvergence, p)
		}
		lo = hi
		hi *= 2
	}

	x := math.Min(math.Max(d.Mean(), lo), hi)
	for i := 0; i < quantileMaxIterations; i++ {
		f := d.CDF(x) - p
		if math.Abs(f) < quantileTolerance {
			return x, nil
		}
		if f < 0 {
			lo = x
		} else {
			hi = x
		}
		if hi-lo < quantileTolerance*math.Max(1, hi) {
			return x, nil
		}

		next := (lo + hi) / 2
		if dens := d.Prob(x); dens > 0 {
			if newton := x - f/dens; newton > lo && newton < hi {
				next = newton
			}
		}
		x = next
	}
	return x, fmt.Errorf("%w: quantile %v after %d iterations", ErrNoConvergence, p, quantileMaxIterations)
}
