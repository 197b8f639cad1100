package engines

import (
	"fmt"
	"math"

	"github.com/bcdannyboy/fdm/instruments"
)

const mertonMaxJumps = 100

// MertonJumpPrice is the European price under Merton's jump diffusion: a
// Poisson-weighted sum of Black-Scholes prices conditioned on the number of
// jumps to maturity.
func MertonJumpPrice(t instruments.OptionType, S, K, T, r, q, sigma, lambda, mu, delta float64) (float64, error) {
	if !(lambda >= 0) || !(delta >= 0) {
		return 0, fmt.Errorf("%w: jump intensity %v, jump volatility %v", ErrInvalidArgument, lambda, delta)
	}
	k := math.Exp(mu+0.5*delta*delta) - 1
	lt := lambda * (1 + k) * T

	price := 0.0
	weight := math.Exp(-lt)
	for n := 0; n <= mertonMaxJumps; n++ {
		if n > 0 {
			weight *= lt / float64(n)
		}
		sigmaN := math.Sqrt(sigma*sigma + float64(n)*delta*delta/T)
		rN := r - lambda*k + float64(n)*math.Log(1+k)/T
		bs, err := BlackScholesPrice(t, S, K, T, rN, q, sigmaN)
		if err != nil {
			return 0, err
		}
		price += weight * bs.Price
		if n > int(lt) && weight < 1e-16 {
			break
		}
	}
	return price, nil
}
