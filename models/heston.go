package models

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bcdannyboy/fdm/distributions"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Discretization selects how HestonProcess.Evolve steps the variance.
type Discretization int

const (
	PartialTruncation Discretization = iota
	FullTruncation
	Reflection
	ExactVariance
)

func (d Discretization) String() string {
	switch d {
	case PartialTruncation:
		return "partial-truncation"
	case FullTruncation:
		return "full-truncation"
	case Reflection:
		return "reflection"
	case ExactVariance:
		return "exact-variance"
	}
	return fmt.Sprintf("Discretization(%d)", int(d))
}

func ParseDiscretization(s string) (Discretization, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "partial-truncation", "partialtruncation", "partial":
		return PartialTruncation, nil
	case "full-truncation", "fulltruncation", "full":
		return FullTruncation, nil
	case "reflection":
		return Reflection, nil
	case "exact-variance", "exactvariance", "exact":
		return ExactVariance, nil
	}
	return 0, fmt.Errorf("%w: unknown Heston discretization %q", ErrInvalidArgument, s)
}

func (d Discretization) valid() bool {
	return d >= PartialTruncation && d <= ExactVariance
}

// largest probability handed to the variance quantile
const maxUniform = 1 - 2.220446049250313e-16

// hestonParams is an immutable view of the process parameters. A new one is
// published on every quote change.
type hestonParams struct {
	s0, v0, kappa, theta, sigma, rho float64
	sqrho                            float64
	err                              error
}

// HestonProcess is the two-factor stochastic-volatility process
//
//	dS/S = (r - q) dt + sqrt(v) dW1
//	dv   = kappa (theta - v) dt + sigma sqrt(v) dW2,  dW1 dW2 = rho dt
//
// with state [S, v]. Parameters are quotes; the process follows them and
// republishes its parameter snapshot atomically, so Evolve can be called
// from several goroutines while the quotes move.
type HestonProcess struct {
	riskFree, dividend               YieldTermStructure
	s0, v0, kappa, theta, sigma, rho Quote
	discretization                   Discretization
	params                           atomic.Pointer[hestonParams]
	cancels                          []func()
}

func NewHestonProcess(riskFree, dividend YieldTermStructure, s0, v0, kappa, theta, sigma, rho Quote, d Discretization) (*HestonProcess, error) {
	if riskFree == nil || dividend == nil {
		return nil, fmt.Errorf("%w: missing term structure", ErrInvalidArgument)
	}
	for _, q := range []Quote{s0, v0, kappa, theta, sigma, rho} {
		if q == nil {
			return nil, fmt.Errorf("%w: missing Heston parameter quote", ErrInvalidArgument)
		}
	}
	if !d.valid() {
		return nil, fmt.Errorf("%w: unknown Heston discretization %d", ErrInvalidArgument, int(d))
	}

	p := &HestonProcess{
		riskFree:       riskFree,
		dividend:       dividend,
		s0:             s0,
		v0:             v0,
		kappa:          kappa,
		theta:          theta,
		sigma:          sigma,
		rho:            rho,
		discretization: d,
	}
	if err := p.Update(); err != nil {
		return nil, err
	}
	for _, q := range []Quote{s0, v0, kappa, theta, sigma, rho} {
		p.cancels = append(p.cancels, q.Observe(func() { _ = p.Update() }))
	}
	return p, nil
}

// Update re-reads every quote and publishes a new parameter snapshot. An
// out-of-range correlation is stored with the snapshot and reported by every
// later call until the quote is fixed.
func (p *HestonProcess) Update() error {
	snap := &hestonParams{
		s0:    p.s0.Value(),
		v0:    p.v0.Value(),
		kappa: p.kappa.Value(),
		theta: p.theta.Value(),
		sigma: p.sigma.Value(),
		rho:   p.rho.Value(),
	}
	if math.IsNaN(snap.rho) || snap.rho < -1 || snap.rho > 1 {
		snap.err = fmt.Errorf("%w: correlation %v outside [-1, 1]", ErrInvalidArgument, snap.rho)
	} else {
		snap.sqrho = math.Sqrt(1 - snap.rho*snap.rho)
	}
	p.params.Store(snap)
	return snap.err
}

// Close detaches the process from its quotes.
func (p *HestonProcess) Close() {
	for _, cancel := range p.cancels {
		cancel()
	}
	p.cancels = nil
}

func (p *HestonProcess) S0() Quote      { return p.s0 }
func (p *HestonProcess) V0() float64    { return p.params.Load().v0 }
func (p *HestonProcess) Kappa() float64 { return p.params.Load().kappa }
func (p *HestonProcess) Theta() float64 { return p.params.Load().theta }
func (p *HestonProcess) Sigma() float64 { return p.params.Load().sigma }
func (p *HestonProcess) Rho() float64   { return p.params.Load().rho }

func (p *HestonProcess) Discretization() Discretization { return p.discretization }

func (p *HestonProcess) RiskFreeRate() YieldTermStructure  { return p.riskFree }
func (p *HestonProcess) DividendYield() YieldTermStructure { return p.dividend }

func (p *HestonProcess) Size() int { return 2 }

func (p *HestonProcess) Factors() int { return 2 }

func (p *HestonProcess) InitialValues() []float64 {
	snap := p.params.Load()
	return []float64{snap.s0, snap.v0}
}

// volatility returns the volatility used for a step from variance v, floored
// according to the discretization.
func (p *HestonProcess) volatility(v float64) float64 {
	if p.discretization == Reflection {
		return math.Sqrt(math.Abs(v))
	}
	return math.Sqrt(math.Max(v, 0))
}

func (p *HestonProcess) load(x []float64) (*hestonParams, error) {
	if len(x) != 2 {
		return nil, fmt.Errorf("%w: state size %d, want 2", ErrInvalidArgument, len(x))
	}
	if !p.discretization.valid() {
		return nil, fmt.Errorf("%w: unknown Heston discretization %d", ErrInvalidArgument, int(p.discretization))
	}
	snap := p.params.Load()
	if snap.err != nil {
		return nil, snap.err
	}
	return snap, nil
}

func (p *HestonProcess) Drift(t float64, x []float64) ([]float64, error) {
	snap, err := p.load(x)
	if err != nil {
		return nil, err
	}
	vol := p.volatility(x[1])
	varianceDrift := snap.kappa * (snap.theta - vol*vol)
	if p.discretization == PartialTruncation {
		varianceDrift = snap.kappa * (snap.theta - x[1])
	}
	return []float64{
		p.riskFree.ForwardRate(t, t) - p.dividend.ForwardRate(t, t) - 0.5*vol*vol,
		varianceDrift,
	}, nil
}

func (p *HestonProcess) Diffusion(t float64, x []float64) (*mat.Dense, error) {
	snap, err := p.load(x)
	if err != nil {
		return nil, err
	}
	vol := p.volatility(x[1])
	sigma2 := snap.sigma * vol
	return mat.NewDense(2, 2, []float64{
		vol, 0,
		snap.rho * sigma2, snap.sqrho * sigma2,
	}), nil
}

// Evolve advances [S, v] by dt given two independent standard normal shocks.
func (p *HestonProcess) Evolve(t0 float64, x0 []float64, dt float64, dw []float64) ([]float64, error) {
	snap, err := p.load(x0)
	if err != nil {
		return nil, err
	}
	if len(dw) < 2 {
		return nil, fmt.Errorf("%w: %d shocks, want 2", ErrInvalidArgument, len(dw))
	}

	sdt := math.Sqrt(dt)
	level, v := x0[0], x0[1]
	vol := p.volatility(v)
	mu := p.riskFree.ForwardRate(t0, t0) - p.dividend.ForwardRate(t0, t0) - 0.5*vol*vol
	shock := snap.sigma * vol * sdt * (snap.rho*dw[0] + snap.sqrho*dw[1])

	switch p.discretization {
	case PartialTruncation:
		nu := snap.kappa * (snap.theta - v)
		return []float64{
			level * math.Exp(mu*dt+vol*dw[0]*sdt),
			v + nu*dt + shock,
		}, nil
	case FullTruncation:
		nu := snap.kappa * (snap.theta - vol*vol)
		return []float64{
			level * math.Exp(mu*dt+vol*dw[0]*sdt),
			v + nu*dt + shock,
		}, nil
	case Reflection:
		nu := snap.kappa * (snap.theta - vol*vol)
		return []float64{
			level * math.Exp(mu*dt+vol*dw[0]*sdt),
			vol*vol + nu*dt + shock,
		}, nil
	case ExactVariance:
		return p.evolveExact(snap, level, v, vol, mu, dt, sdt, dw)
	}
	return nil, fmt.Errorf("%w: unknown Heston discretization %d", ErrInvalidArgument, int(p.discretization))
}

// evolveExact samples the variance from its non-central chi-squared
// transition law and moves the asset with the correlated part of the shock
// expressed through the variance increment.
func (p *HestonProcess) evolveExact(snap *hestonParams, level, v, vol, mu, dt, sdt float64, dw []float64) ([]float64, error) {
	if !(snap.kappa > 0) || !(snap.sigma > 0) {
		return nil, fmt.Errorf("%w: exact variance sampling needs kappa > 0 and sigma > 0, got kappa %v, sigma %v",
			ErrNotImplemented, snap.kappa, snap.sigma)
	}
	kappa, theta, sigma := snap.kappa, snap.theta, snap.sigma
	ex := math.Exp(-kappa * dt)
	s2 := sigma * sigma

	c := s2 * (1 - ex) / (4 * kappa)
	df := 4 * kappa * theta / s2
	ncp := 4 * kappa * ex * math.Max(v, 0) / (s2 * (1 - ex))

	dist, err := distributions.NewNonCentralChiSquared(df, ncp)
	if err != nil {
		return nil, fmt.Errorf("%w: variance transition: %v", ErrInvalidArgument, err)
	}
	u := math.Min(math.Max(distuv.UnitNormal.CDF(dw[1]), 0), maxUniform)
	q, err := dist.Quantile(u)
	if err != nil {
		return nil, fmt.Errorf("sampling variance: %w", err)
	}
	next := c * q

	rs := snap.rho / sigma
	dy := (mu-rs*kappa*(theta-vol*vol))*dt + vol*snap.sqrho*dw[0]*sdt
	return []float64{level * math.Exp(dy+rs*(next-v)), next}, nil
}

// Apply moves the asset multiplicatively and the variance additively.
func (p *HestonProcess) Apply(x0, dx []float64) []float64 {
	return []float64{x0[0] * math.Exp(dx[0]), x0[1] + dx[1]}
}

func (p *HestonProcess) Time(d time.Time) float64 {
	return p.riskFree.DayCounter().YearFraction(p.riskFree.ReferenceDate(), d)
}
