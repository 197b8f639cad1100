package models

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// MertonProcess is a Black-Scholes process with log-normal jumps arriving
// at rate Lambda, log jump sizes being N(Mu, Delta²). Each Evolve call
// consumes three shocks: the diffusion, the jump count and the jump size.
type MertonProcess struct {
	s0       Quote
	riskFree YieldTermStructure
	dividend YieldTermStructure
	Sigma    float64
	Lambda   float64
	Mu       float64
	Delta    float64
}

func NewMertonProcess(s0 Quote, riskFree, dividend YieldTermStructure, sigma, lambda, mu, delta float64) (*MertonProcess, error) {
	if s0 == nil || riskFree == nil || dividend == nil {
		return nil, fmt.Errorf("%w: missing spot or term structure", ErrInvalidArgument)
	}
	if !(sigma >= 0) || !(lambda >= 0) || !(delta >= 0) || math.IsNaN(mu) {
		return nil, fmt.Errorf("%w: sigma %v, lambda %v, mu %v, delta %v", ErrInvalidArgument, sigma, lambda, mu, delta)
	}
	return &MertonProcess{
		s0:       s0,
		riskFree: riskFree,
		dividend: dividend,
		Sigma:    sigma,
		Lambda:   lambda,
		Mu:       mu,
		Delta:    delta,
	}, nil
}

func (m *MertonProcess) Spot() Quote { return m.s0 }

func (m *MertonProcess) RiskFreeRate() YieldTermStructure  { return m.riskFree }
func (m *MertonProcess) DividendYield() YieldTermStructure { return m.dividend }

// JumpCompensator is E[e^J] - 1 for a single jump J.
func (m *MertonProcess) JumpCompensator() float64 {
	return math.Exp(m.Mu+0.5*m.Delta*m.Delta) - 1
}

func (m *MertonProcess) Size() int { return 1 }

func (m *MertonProcess) Factors() int { return 3 }

func (m *MertonProcess) InitialValues() []float64 {
	return []float64{m.s0.Value()}
}

// Drift is the drift of log S between jumps.
func (m *MertonProcess) Drift(t float64, x []float64) ([]float64, error) {
	if len(x) != 1 {
		return nil, fmt.Errorf("%w: state size %d, want 1", ErrInvalidArgument, len(x))
	}
	r := m.riskFree.ForwardRate(t, t)
	q := m.dividend.ForwardRate(t, t)
	return []float64{r - q - m.Lambda*m.JumpCompensator() - 0.5*m.Sigma*m.Sigma}, nil
}

func (m *MertonProcess) Diffusion(t float64, x []float64) (*mat.Dense, error) {
	if len(x) != 1 {
		return nil, fmt.Errorf("%w: state size %d, want 1", ErrInvalidArgument, len(x))
	}
	return mat.NewDense(1, 1, []float64{m.Sigma}), nil
}

func (m *MertonProcess) Evolve(t0 float64, x0 []float64, dt float64, dw []float64) ([]float64, error) {
	if len(x0) != 1 || len(dw) < 3 {
		return nil, fmt.Errorf("%w: state size %d, shocks %d", ErrInvalidArgument, len(x0), len(dw))
	}
	drift, err := m.Drift(t0, x0)
	if err != nil {
		return nil, err
	}
	dx := drift[0]*dt + m.Sigma*math.Sqrt(dt)*dw[0]

	if n := m.jumpCount(dt, distuv.UnitNormal.CDF(dw[1])); n > 0 {
		dx += float64(n)*m.Mu + math.Sqrt(float64(n))*m.Delta*dw[2]
	}
	return m.Apply(x0, []float64{dx}), nil
}

// jumpCount inverts the Poisson(Lambda*dt) distribution at u.
func (m *MertonProcess) jumpCount(dt, u float64) int {
	rate := m.Lambda * dt
	if rate <= 0 {
		return 0
	}
	p := distuv.Poisson{Lambda: rate}
	n := 0
	for p.CDF(float64(n)) < u && n < 1000 {
		n++
	}
	return n
}

func (m *MertonProcess) Apply(x0, dx []float64) []float64 {
	return []float64{x0[0] * math.Exp(dx[0])}
}

func (m *MertonProcess) Time(d time.Time) float64 {
	return m.riskFree.DayCounter().YearFraction(m.riskFree.ReferenceDate(), d)
}
