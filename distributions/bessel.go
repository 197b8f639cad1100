package distributions

import (
	"math"
)

// BesselI approximates the modified Bessel function of the first kind of
// order nu > -1 by its power series.
func BesselI(nu, x float64) float64 {
	const maxIterations = 1000
	const epsilon = 1e-15

	g := gamma(nu + 1)
	if math.IsNaN(g) {
		return math.NaN()
	}
	sum := 0.0
	term := math.Pow(x/2, nu) / g

	for k := 0; k < maxIterations; k++ {
		sum += term

		term *= 0.25 * x * x / (float64(k+1) * (nu + float64(k+1)))

		if math.Abs(term) < epsilon*math.Abs(sum) {
			break
		}
	}

	return sum
}

// gamma approximates the gamma function
func gamma(x float64) float64 {
	if x <= 0 {
		return math.NaN()
	}

	if x < 1 {
		return gamma(x+1) / x
	}

	if x > 171 {
		return math.Inf(1)
	}

	return math.Gamma(x)
}
