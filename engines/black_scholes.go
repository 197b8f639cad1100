// Package engines prices vanilla options: a finite-difference engine for
// early exercise, the Black-Scholes closed form and an implied volatility
// solver.
package engines

import (
	"errors"
	"fmt"
	"math"

	"github.com/bcdannyboy/fdm/instruments"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrInvalidArgument = errors.New("engines: invalid argument")
	ErrNoConvergence   = errors.New("engines: no convergence")
)

type BSMResult struct {
	Price float64
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
}

// BlackScholesPrice is the closed-form European price and Greeks with a
// continuous dividend yield q.
func BlackScholesPrice(t instruments.OptionType, S, K, T, r, q, sigma float64) (BSMResult, error) {
	if !(S > 0) || !(K > 0) || !(T > 0) || !(sigma > 0) {
		return BSMResult{}, fmt.Errorf("%w: spot %v, strike %v, maturity %v, volatility %v", ErrInvalidArgument, S, K, T, sigma)
	}
	if t != instruments.Call && t != instruments.Put {
		return BSMResult{}, fmt.Errorf("%w: option type %v", ErrInvalidArgument, t)
	}
	N := distuv.UnitNormal

	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r-q+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	dr := math.Exp(-r * T)
	dq := math.Exp(-q * T)

	gamma := dq * N.Prob(d1) / (S * sigma * sqrtT)
	vega := S * dq * N.Prob(d1) * sqrtT
	decay := -S * dq * N.Prob(d1) * sigma / (2 * sqrtT)

	if t == instruments.Call {
		return BSMResult{
			Price: S*dq*N.CDF(d1) - K*dr*N.CDF(d2),
			Delta: dq * N.CDF(d1),
			Gamma: gamma,
			Theta: decay - r*K*dr*N.CDF(d2) + q*S*dq*N.CDF(d1),
			Vega:  vega,
			Rho:   K * T * dr * N.CDF(d2),
		}, nil
	}
	return BSMResult{
		Price: K*dr*N.CDF(-d2) - S*dq*N.CDF(-d1),
		Delta: dq * (N.CDF(d1) - 1),
		Gamma: gamma,
		Theta: decay + r*K*dr*N.CDF(-d2) - q*S*dq*N.CDF(-d1),
		Vega:  vega,
		Rho:   -K * T * dr * N.CDF(-d2),
	}, nil
}
