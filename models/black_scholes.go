package models

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Volatility gives the (local) volatility at time t and price level s.
type Volatility interface {
	Vol(t, s float64) float64
}

// ConstantVol is a flat volatility driven by a quote.
type ConstantVol struct {
	Quote Quote
}

func (c ConstantVol) Vol(float64, float64) float64 { return c.Quote.Value() }

// BlackScholesProcess is the one-factor generalized Black-Scholes process
//
//	dS/S = (r(t) - q(t)) dt + sigma(t, S) dW
type BlackScholesProcess struct {
	s0         Quote
	riskFree   YieldTermStructure
	dividend   YieldTermStructure
	volatility Volatility
}

func NewBlackScholesProcess(s0 Quote, riskFree, dividend YieldTermStructure, vol Volatility) *BlackScholesProcess {
	return &BlackScholesProcess{
		s0:         s0,
		riskFree:   riskFree,
		dividend:   dividend,
		volatility: vol,
	}
}

func (p *BlackScholesProcess) Spot() Quote { return p.s0 }

func (p *BlackScholesProcess) RiskFreeRate() YieldTermStructure { return p.riskFree }

func (p *BlackScholesProcess) DividendYield() YieldTermStructure { return p.dividend }

func (p *BlackScholesProcess) RiskFreeForward(t float64) float64 {
	return p.riskFree.ForwardRate(t, t)
}

func (p *BlackScholesProcess) DividendForward(t float64) float64 {
	return p.dividend.ForwardRate(t, t)
}

func (p *BlackScholesProcess) LocalVolatility(t, s float64) float64 {
	return p.volatility.Vol(t, s)
}

func (p *BlackScholesProcess) Size() int { return 1 }

func (p *BlackScholesProcess) Factors() int { return 1 }

func (p *BlackScholesProcess) InitialValues() []float64 {
	return []float64{p.s0.Value()}
}

// Drift is the drift of log S.
func (p *BlackScholesProcess) Drift(t float64, x []float64) ([]float64, error) {
	if len(x) != 1 {
		return nil, fmt.Errorf("%w: state size %d, want 1", ErrInvalidArgument, len(x))
	}
	sigma := p.volatility.Vol(t, x[0])
	return []float64{p.RiskFreeForward(t) - p.DividendForward(t) - 0.5*sigma*sigma}, nil
}

func (p *BlackScholesProcess) Diffusion(t float64, x []float64) (*mat.Dense, error) {
	if len(x) != 1 {
		return nil, fmt.Errorf("%w: state size %d, want 1", ErrInvalidArgument, len(x))
	}
	return mat.NewDense(1, 1, []float64{p.volatility.Vol(t, x[0])}), nil
}

func (p *BlackScholesProcess) Evolve(t0 float64, x0 []float64, dt float64, dw []float64) ([]float64, error) {
	if len(x0) != 1 || len(dw) < 1 {
		return nil, fmt.Errorf("%w: state size %d, shocks %d", ErrInvalidArgument, len(x0), len(dw))
	}
	drift, err := p.Drift(t0, x0)
	if err != nil {
		return nil, err
	}
	sigma := p.volatility.Vol(t0, x0[0])
	return p.Apply(x0, []float64{drift[0]*dt + sigma*dw[0]*math.Sqrt(dt)}), nil
}

func (p *BlackScholesProcess) Apply(x0, dx []float64) []float64 {
	return []float64{x0[0] * math.Exp(dx[0])}
}

// Time converts a date into a time measured on the risk-free curve.
func (p *BlackScholesProcess) Time(d time.Time) float64 {
	return p.riskFree.DayCounter().YearFraction(p.riskFree.ReferenceDate(), d)
}
