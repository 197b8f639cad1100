package engines

import (
	"fmt"
	"math"

	"github.com/bcdannyboy/fdm/instruments"
	"gonum.org/v1/gonum/optimize"
)

const (
	impliedVolGuess     = 0.2
	impliedVolTolerance = 1e-8
)

// ImpliedVolatility finds the Black-Scholes volatility reproducing price.
// The search runs Nelder-Mead over log-volatility so that the volatility
// stays positive.
func ImpliedVolatility(price float64, t instruments.OptionType, S, K, T, r, q float64) (float64, error) {
	if !(S > 0) || !(K > 0) || !(T > 0) {
		return 0, fmt.Errorf("%w: spot %v, strike %v, maturity %v", ErrInvalidArgument, S, K, T)
	}
	lower, upper := priceBounds(t, S, K, T, r, q)
	if !(price > lower) || !(price < upper) {
		return 0, fmt.Errorf("%w: price %v outside no-arbitrage bounds (%v, %v)", ErrInvalidArgument, price, lower, upper)
	}

	objective := func(x []float64) float64 {
		res, err := BlackScholesPrice(t, S, K, T, r, q, math.Exp(x[0]))
		if err != nil {
			return math.Inf(1)
		}
		diff := res.Price - price
		return diff * diff
	}

	problem := optimize.Problem{Func: objective}
	settings := &optimize.Settings{
		MajorIterations: 1000,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-20,
			Iterations: 50,
		},
	}
	result, err := optimize.Minimize(problem, []float64{math.Log(impliedVolGuess)}, settings, &optimize.NelderMead{})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoConvergence, err)
	}

	vol := math.Exp(result.X[0])
	res, err := BlackScholesPrice(t, S, K, T, r, q, vol)
	if err != nil {
		return 0, err
	}
	if math.Abs(res.Price-price) > impliedVolTolerance*math.Max(1, price) {
		return 0, fmt.Errorf("%w: residual %v at volatility %v", ErrNoConvergence, res.Price-price, vol)
	}
	return vol, nil
}

// priceBounds returns the zero- and infinite-volatility limits of the price.
func priceBounds(t instruments.OptionType, S, K, T, r, q float64) (float64, float64) {
	fwdS := S * math.Exp(-q*T)
	fwdK := K * math.Exp(-r*T)
	if t == instruments.Call {
		return math.Max(fwdS-fwdK, 0), fwdS
	}
	return math.Max(fwdK-fwdS, 0), fwdK
}
