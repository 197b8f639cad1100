package models

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat/distuv"
)

var refDate = time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)

type hestonQuotes struct {
	s0, v0, kappa, theta, sigma, rho *SimpleQuote
	r, q                             *SimpleQuote
}

func newTestHeston(t *testing.T, d Discretization) (*HestonProcess, *hestonQuotes) {
	t.Helper()
	qs := &hestonQuotes{
		s0:    NewSimpleQuote(100),
		v0:    NewSimpleQuote(0.04),
		kappa: NewSimpleQuote(1.5),
		theta: NewSimpleQuote(0.05),
		sigma: NewSimpleQuote(0.3),
		rho:   NewSimpleQuote(-0.6),
		r:     NewSimpleQuote(0.03),
		q:     NewSimpleQuote(0.01),
	}
	p, err := NewHestonProcess(
		NewFlatForward(refDate, qs.r, Actual365Fixed{}),
		NewFlatForward(refDate, qs.q, Actual365Fixed{}),
		qs.s0, qs.v0, qs.kappa, qs.theta, qs.sigma, qs.rho, d)
	if err != nil {
		t.Fatalf("NewHestonProcess: %v", err)
	}
	t.Cleanup(p.Close)
	return p, qs
}

func TestFullTruncationStep(t *testing.T) {
	p, _ := newTestHeston(t, FullTruncation)
	dt := 0.25
	dw := []float64{0.7, -1.2}

	got, err := p.Evolve(0, []float64{100, 0.04}, dt, dw)
	if err != nil {
		t.Fatalf("Evolve: %v", err)
	}

	sdt := math.Sqrt(dt)
	vol := 0.2
	mu := 0.03 - 0.01 - 0.5*vol*vol
	wantS := 100 * math.Exp(mu*dt+vol*dw[0]*sdt)
	sqrho := math.Sqrt(1 - 0.36)
	wantV := 0.04 + 1.5*(0.05-0.04)*dt + 0.3*vol*sdt*(-0.6*dw[0]+sqrho*dw[1])

	if !scalar.EqualWithinAbsOrRel(got[0], wantS, 1e-12, 1e-12) {
		t.Errorf("asset = %v, want %v", got[0], wantS)
	}
	if !scalar.EqualWithinAbsOrRel(got[1], wantV, 1e-12, 1e-12) {
		t.Errorf("variance = %v, want %v", got[1], wantV)
	}
}

func TestNegativeVarianceHandling(t *testing.T) {
	x0 := []float64{100, -0.01}
	dw := []float64{0.3, 0.4}
	dt := 0.1

	tests := []struct {
		d     Discretization
		check func(t *testing.T, x []float64)
	}{
		{PartialTruncation, func(t *testing.T, x []float64) {
			// vol floored at zero: the asset drifts deterministically, the
			// variance reverts from the raw negative value
			want := -0.01 + 1.5*(0.05+0.01)*dt
			if !scalar.EqualWithinAbsOrRel(x[1], want, 1e-14, 1e-12) {
				t.Errorf("variance = %v, want %v", x[1], want)
			}
		}},
		{FullTruncation, func(t *testing.T, x []float64) {
			want := -0.01 + 1.5*0.05*dt
			if !scalar.EqualWithinAbsOrRel(x[1], want, 1e-14, 1e-12) {
				t.Errorf("variance = %v, want %v", x[1], want)
			}
		}},
		{Reflection, func(t *testing.T, x []float64) {
			if x[1] < 0 {
				t.Errorf("reflected variance should restart from |v|, got %v", x[1])
			}
		}},
		{ExactVariance, func(t *testing.T, x []float64) {
			if x[1] < 0 {
				t.Errorf("exact variance must stay non-negative, got %v", x[1])
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			p, _ := newTestHeston(t, tt.d)
			x, err := p.Evolve(0, x0, dt, dw)
			if err != nil {
				t.Fatalf("Evolve: %v", err)
			}
			for i, v := range x {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Fatalf("component %d not finite: %v", i, v)
				}
			}
			tt.check(t, x)

			if _, err := p.Drift(0, x0); err != nil {
				t.Errorf("Drift: %v", err)
			}
			m, err := p.Diffusion(0, x0)
			if err != nil {
				t.Fatalf("Diffusion: %v", err)
			}
			for i := 0; i < 2; i++ {
				for j := 0; j < 2; j++ {
					if math.IsNaN(m.At(i, j)) {
						t.Errorf("diffusion(%d,%d) is NaN", i, j)
					}
				}
			}
		})
	}
}

func TestZeroShockStepIsMeanReversion(t *testing.T) {
	p, qs := newTestHeston(t, FullTruncation)
	qs.kappa.SetValue(2)
	qs.theta.SetValue(0.04)
	qs.sigma.SetValue(0.3)
	qs.rho.SetValue(-0.5)

	dt := 0.01
	for _, v := range []float64{0.04, 0.09, 0.01} {
		x, err := p.Evolve(0, []float64{100, v}, dt, []float64{0, 0})
		if err != nil {
			t.Fatalf("Evolve: %v", err)
		}
		if want := v + 2*(0.04-v)*dt; !scalar.EqualWithinAbsOrRel(x[1], want, 1e-15, 1e-14) {
			t.Errorf("v0=%v: variance = %v, want %v", v, x[1], want)
		}
		if want := 100 * math.Exp((0.03-0.01-0.5*v)*dt); !scalar.EqualWithinAbsOrRel(x[0], want, 1e-12, 1e-12) {
			t.Errorf("v0=%v: asset = %v, want %v", v, x[0], want)
		}
	}
}

func TestZeroVarianceKeepsAssetDeterministic(t *testing.T) {
	tests := []struct {
		d Discretization
	}{
		{PartialTruncation},
		{FullTruncation},
		{Reflection},
	}
	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			p, _ := newTestHeston(t, tt.d)
			x, err := p.Evolve(0, []float64{100, 0}, 0.5, []float64{3, -3})
			if err != nil {
				t.Fatalf("Evolve: %v", err)
			}
			for i, v := range x {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Fatalf("component %d not finite: %v", i, v)
				}
			}
			if want := 100 * math.Exp(0.02*0.5); !scalar.EqualWithinAbsOrRel(x[0], want, 1e-12, 1e-12) {
				t.Errorf("asset = %v, want %v", x[0], want)
			}
			if want := 1.5 * 0.05 * 0.5; !scalar.EqualWithinAbsOrRel(x[1], want, 1e-14, 1e-12) {
				t.Errorf("variance = %v, want %v", x[1], want)
			}
		})
	}
}

// slopedCurve has forward rate r0 + slope*t2, so a forward over a period
// differs from the instantaneous one.
type slopedCurve struct {
	r0, slope float64
}

func (c slopedCurve) ForwardRate(_, t2 float64) float64 { return c.r0 + c.slope*t2 }
func (c slopedCurve) ReferenceDate() time.Time          { return refDate }
func (c slopedCurve) DayCounter() DayCounter            { return Actual365Fixed{} }

func TestEvolveDriftMatchesDrift(t *testing.T) {
	q := NewSimpleQuote
	for _, d := range []Discretization{PartialTruncation, FullTruncation, Reflection} {
		p, err := NewHestonProcess(slopedCurve{0.03, 0.5}, slopedCurve{0.01, -0.2},
			q(100), q(0.04), q(1.5), q(0.05), q(0.3), q(-0.6), d)
		if err != nil {
			t.Fatalf("NewHestonProcess: %v", err)
		}
		defer p.Close()

		t0, dt := 0.5, 0.25
		x0 := []float64{100, 0.04}
		drift, err := p.Drift(t0, x0)
		if err != nil {
			t.Fatalf("Drift: %v", err)
		}
		x, err := p.Evolve(t0, x0, dt, []float64{0, 0})
		if err != nil {
			t.Fatalf("Evolve: %v", err)
		}
		if want := 100 * math.Exp(drift[0]*dt); !scalar.EqualWithinAbsOrRel(x[0], want, 1e-12, 1e-12) {
			t.Errorf("%v: asset = %v, want %v", d, x[0], want)
		}
		if want := 0.04 + drift[1]*dt; !scalar.EqualWithinAbsOrRel(x[1], want, 1e-14, 1e-12) {
			t.Errorf("%v: variance = %v, want %v", d, x[1], want)
		}
	}
}

func TestDriftAndDiffusion(t *testing.T) {
	p, _ := newTestHeston(t, PartialTruncation)
	x := []float64{100, 0.09}
	drift, err := p.Drift(0, x)
	if err != nil {
		t.Fatalf("Drift: %v", err)
	}
	if want := []float64{0.02 - 0.045, 1.5 * (0.05 - 0.09)}; !floats.EqualApprox(drift, want, 1e-14) {
		t.Errorf("drift = %v, want %v", drift, want)
	}

	m, err := p.Diffusion(0, x)
	if err != nil {
		t.Fatalf("Diffusion: %v", err)
	}
	sqrho := math.Sqrt(1 - 0.36)
	want := [][]float64{{0.3, 0}, {-0.6 * 0.3 * 0.3, sqrho * 0.3 * 0.3}}
	for i := range want {
		for j := range want[i] {
			if got := m.At(i, j); !scalar.EqualWithinAbsOrRel(got, want[i][j], 1e-14, 1e-12) {
				t.Errorf("diffusion(%d,%d) = %v, want %v", i, j, got, want[i][j])
			}
		}
	}
}

func TestUnknownDiscretization(t *testing.T) {
	p, _ := newTestHeston(t, FullTruncation)
	p.discretization = Discretization(42)

	if _, err := p.Evolve(0, []float64{100, 0.04}, 0.1, []float64{0, 0}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Evolve: got %v, want ErrInvalidArgument", err)
	}
	if _, err := p.Drift(0, []float64{100, 0.04}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Drift: got %v, want ErrInvalidArgument", err)
	}
	if _, err := p.Diffusion(0, []float64{100, 0.04}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Diffusion: got %v, want ErrInvalidArgument", err)
	}
	if _, err := ParseDiscretization("euler"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseDiscretization: got %v, want ErrInvalidArgument", err)
	}
}

func TestParseDiscretization(t *testing.T) {
	for _, d := range []Discretization{PartialTruncation, FullTruncation, Reflection, ExactVariance} {
		got, err := ParseDiscretization(d.String())
		if err != nil || got != d {
			t.Errorf("ParseDiscretization(%q) = %v, %v", d.String(), got, err)
		}
	}
}

func TestQuoteChangePropagates(t *testing.T) {
	p, qs := newTestHeston(t, FullTruncation)

	qs.kappa.SetValue(2.5)
	qs.v0.SetValue(0.09)
	if p.Kappa() != 2.5 {
		t.Errorf("kappa = %v, want 2.5", p.Kappa())
	}
	if got := p.InitialValues(); got[1] != 0.09 {
		t.Errorf("initial variance = %v, want 0.09", got[1])
	}

	qs.rho.SetValue(0.8)
	m, err := p.Diffusion(0, []float64{100, 0.04})
	if err != nil {
		t.Fatalf("Diffusion: %v", err)
	}
	if got, want := m.At(1, 1), 0.6*0.3*0.2; !scalar.EqualWithinAbsOrRel(got, want, 1e-14, 1e-12) {
		t.Errorf("decorrelated term = %v, want %v", got, want)
	}

	qs.rho.SetValue(1.5)
	if _, err := p.Evolve(0, []float64{100, 0.04}, 0.1, []float64{0, 0}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("out-of-range rho: got %v, want ErrInvalidArgument", err)
	}
	qs.rho.SetValue(-0.6)
	if _, err := p.Evolve(0, []float64{100, 0.04}, 0.1, []float64{0, 0}); err != nil {
		t.Errorf("restored rho: %v", err)
	}

	p.Close()
	qs.kappa.SetValue(4)
	if p.Kappa() != 2.5 {
		t.Errorf("closed process followed the quote: kappa = %v", p.Kappa())
	}
}

func TestConcurrentEvolveDuringUpdates(t *testing.T) {
	p, qs := newTestHeston(t, FullTruncation)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			x := p.InitialValues()
			for i := 0; i < 200; i++ {
				next, err := p.Evolve(0, x, 0.01, []float64{0.1, -0.1})
				if err != nil {
					t.Errorf("Evolve: %v", err)
					return
				}
				x = next
			}
		}()
	}
	for i := 0; i < 50; i++ {
		qs.theta.SetValue(0.05 + float64(i)*1e-4)
	}
	wg.Wait()
}

func TestInvalidConstruction(t *testing.T) {
	r := NewFlatForward(refDate, NewSimpleQuote(0.03), nil)
	q := NewSimpleQuote
	_, err := NewHestonProcess(r, r, q(100), q(0.04), q(1), q(0.04), q(0.3), q(-1.2), FullTruncation)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("rho=-1.2: got %v, want ErrInvalidArgument", err)
	}
	_, err = NewHestonProcess(r, r, q(100), q(0.04), q(1), q(0.04), q(0.3), q(0), Discretization(-1))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("bad mode: got %v, want ErrInvalidArgument", err)
	}
}

func TestExactVarianceConditionalMean(t *testing.T) {
	p, _ := newTestHeston(t, ExactVariance)
	const n = 400
	dt := 0.5
	v0 := 0.04
	normal := distuv.UnitNormal

	sum := 0.0
	for i := 0; i < n; i++ {
		z := normal.Quantile((float64(i) + 0.5) / n)
		x, err := p.Evolve(0, []float64{100, v0}, dt, []float64{0, z})
		if err != nil {
			t.Fatalf("Evolve: %v", err)
		}
		if x[1] < 0 {
			t.Fatalf("negative variance %v", x[1])
		}
		sum += x[1]
	}
	want := 0.05 + (v0-0.05)*math.Exp(-1.5*dt)
	if got := sum / n; math.Abs(got-want) > 0.02*want {
		t.Errorf("mean variance = %v, want about %v", got, want)
	}
}

func TestExactVarianceNeedsPositiveParameters(t *testing.T) {
	p, qs := newTestHeston(t, ExactVariance)
	qs.sigma.SetValue(0)
	if _, err := p.Evolve(0, []float64{100, 0.04}, 0.1, []float64{0, 0}); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("sigma=0: got %v, want ErrNotImplemented", err)
	}
	qs.sigma.SetValue(0.3)
	qs.kappa.SetValue(0)
	if _, err := p.Evolve(0, []float64{100, 0.04}, 0.1, []float64{0, 0}); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("kappa=0: got %v, want ErrNotImplemented", err)
	}
}

func TestHestonTime(t *testing.T) {
	p, _ := newTestHeston(t, FullTruncation)
	if got := p.Time(refDate.AddDate(0, 0, 73)); !scalar.EqualWithinAbsOrRel(got, 0.2, 1e-12, 1e-12) {
		t.Errorf("Time = %v, want 0.2", got)
	}
}

func TestSimpleQuoteNotifiesOnChangeOnly(t *testing.T) {
	q := NewSimpleQuote(1)
	calls := 0
	cancel := q.Observe(func() { calls++ })
	q.SetValue(1)
	q.SetValue(2)
	q.SetValue(2)
	cancel()
	q.SetValue(3)
	if calls != 1 {
		t.Errorf("observer called %d times, want 1", calls)
	}
}

func TestBlackScholesProcess(t *testing.T) {
	r := NewFlatForward(refDate, NewSimpleQuote(0.05), nil)
	q := NewFlatForward(refDate, NewSimpleQuote(0.02), nil)
	p := NewBlackScholesProcess(NewSimpleQuote(50), r, q, ConstantVol{Quote: NewSimpleQuote(0.2)})

	drift, err := p.Drift(0, []float64{50})
	if err != nil {
		t.Fatalf("Drift: %v", err)
	}
	if !scalar.EqualWithinAbsOrRel(drift[0], 0.03-0.02, 1e-14, 1e-14) {
		t.Errorf("drift = %v", drift[0])
	}
	x, err := p.Evolve(0, []float64{50}, 1, []float64{1})
	if err != nil {
		t.Fatalf("Evolve: %v", err)
	}
	if want := 50 * math.Exp(0.01+0.2); !scalar.EqualWithinAbsOrRel(x[0], want, 1e-12, 1e-12) {
		t.Errorf("Evolve = %v, want %v", x[0], want)
	}
	if _, err := p.Evolve(0, []float64{50, 1}, 1, []float64{1}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("wrong state size: got %v", err)
	}
}

func TestVolatilitySurface(t *testing.T) {
	s, err := NewVolatilitySurface(
		[]float64{0.5, 1},
		[]float64{90, 110},
		[][]float64{{0.2, 0.3}, {0.4, 0.5}},
	)
	if err != nil {
		t.Fatalf("NewVolatilitySurface: %v", err)
	}
	tests := []struct {
		t, k, want float64
	}{
		{0.5, 90, 0.2},
		{1, 110, 0.5},
		{0.75, 100, 0.35},
		{0.1, 50, 0.2},
		{2, 200, 0.5},
		{0.75, 50, 0.3},
	}
	for _, tt := range tests {
		if got := s.Vol(tt.t, tt.k); !scalar.EqualWithinAbsOrRel(got, tt.want, 1e-14, 1e-12) {
			t.Errorf("Vol(%v, %v) = %v, want %v", tt.t, tt.k, got, tt.want)
		}
	}

	if _, err := NewVolatilitySurface([]float64{1, 0.5}, []float64{90}, [][]float64{{0.2}, {0.2}}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("unsorted times: got %v", err)
	}
	if _, err := NewVolatilitySurface([]float64{1}, []float64{90, 100}, [][]float64{{0.2}}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ragged row: got %v", err)
	}
}

func flatBars(n int, open, high, low, close float64) []Bar {
	bars := make([]Bar, n)
	for i := range bars {
		bars[i] = Bar{Date: refDate.AddDate(0, 0, i), Open: open, High: high, Low: low, Close: close}
	}
	return bars
}

func TestRealizedVolatilityRangeEstimators(t *testing.T) {
	lo := 100.0
	hi := lo * math.Exp(0.02)

	tests := []struct {
		e    Estimator
		bars []Bar
		want float64
	}{
		{Parkinson, flatBars(10, lo, hi, lo, lo), math.Sqrt(0.0004 / (4 * math.Ln2) * 252)},
		{GarmanKlass, flatBars(10, lo, hi, lo, lo), math.Sqrt(0.5 * 0.0004 * 252)},
		{RogersSatchell, flatBars(10, lo, hi, lo, lo), math.Sqrt(0.0004 * 252)},
		{CloseToClose, flatBars(10, lo, hi, lo, lo), 0},
		{YangZhang, flatBars(10, lo, lo, lo, lo), 0},
	}
	for _, tt := range tests {
		got, err := RealizedVolatility(tt.bars, 0, tt.e)
		if err != nil {
			t.Fatalf("%v: %v", tt.e, err)
		}
		if !scalar.EqualWithinAbsOrRel(got, tt.want, 1e-12, 1e-10) {
			t.Errorf("%v = %v, want %v", tt.e, got, tt.want)
		}
	}
}

func TestRealizedVolatilityCloseToClose(t *testing.T) {
	closes := []float64{100, 101, 100.5, 102, 101}
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{Date: refDate.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	r := make([]float64, len(closes)-1)
	mean := 0.0
	for i := range r {
		r[i] = math.Log(closes[i+1] / closes[i])
		mean += r[i] / float64(len(r))
	}
	ss := 0.0
	for _, x := range r {
		ss += (x - mean) * (x - mean)
	}
	want := math.Sqrt(ss / float64(len(r)-1) * 252)

	got, err := RealizedVolatility(bars, 0, CloseToClose)
	if err != nil {
		t.Fatalf("RealizedVolatility: %v", err)
	}
	if !scalar.EqualWithinAbsOrRel(got, want, 1e-14, 1e-12) {
		t.Errorf("close-to-close = %v, want %v", got, want)
	}

	// window keeps only the last three bars
	short, _ := RealizedVolatility(bars, 3, CloseToClose)
	full, _ := RealizedVolatility(bars[2:], 0, CloseToClose)
	if short != full {
		t.Errorf("windowed = %v, want %v", short, full)
	}
}

func TestRealizedVolatilityErrors(t *testing.T) {
	if _, err := RealizedVolatility(flatBars(1, 1, 1, 1, 1), 0, Parkinson); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("single bar: got %v", err)
	}
	if _, err := RealizedVolatility(flatBars(3, 1, 1, 2, 1), 0, Parkinson); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("low above high: got %v", err)
	}
	if _, err := ParseEstimator("ewma"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseEstimator: got %v", err)
	}
	for _, e := range []Estimator{CloseToClose, Parkinson, GarmanKlass, RogersSatchell, YangZhang} {
		if got, err := ParseEstimator(e.String()); err != nil || got != e {
			t.Errorf("ParseEstimator(%q) = %v, %v", e.String(), got, err)
		}
	}
}

func TestMertonEvolve(t *testing.T) {
	r := NewFlatForward(refDate, NewSimpleQuote(0.03), Actual365Fixed{})
	q := NewFlatForward(refDate, NewSimpleQuote(0), Actual365Fixed{})
	m, err := NewMertonProcess(NewSimpleQuote(100), r, q, 0.2, 1, -0.1, 0.15)
	if err != nil {
		t.Fatalf("NewMertonProcess: %v", err)
	}
	if m.Size() != 1 || m.Factors() != 3 {
		t.Fatalf("size %d, factors %d", m.Size(), m.Factors())
	}
	drift, _ := m.Drift(0, []float64{100})
	want := 0.03 - m.JumpCompensator() - 0.02
	if !scalar.EqualWithinAbsOrRel(drift[0], want, 1e-12, 1e-12) {
		t.Errorf("drift = %v, want %v", drift[0], want)
	}

	quiet, err := m.Evolve(0, []float64{100}, 1, []float64{0, -3, 0})
	if err != nil {
		t.Fatalf("Evolve: %v", err)
	}
	if !scalar.EqualWithinAbsOrRel(quiet[0], 100*math.Exp(want), 1e-12, 1e-12) {
		t.Errorf("no-jump step = %v, want %v", quiet[0], 100*math.Exp(want))
	}
	// Poisson(1) reaches 0.99865 at five jumps
	jumpy, _ := m.Evolve(0, []float64{100}, 1, []float64{0, 3, 0})
	if !scalar.EqualWithinAbsOrRel(jumpy[0], 100*math.Exp(want-0.5), 1e-12, 1e-12) {
		t.Errorf("five-jump step = %v, want %v", jumpy[0], 100*math.Exp(want-0.5))
	}
	if _, err := m.Evolve(0, []float64{100}, 1, []float64{0}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("short shocks: got %v", err)
	}
	if _, err := NewMertonProcess(NewSimpleQuote(100), r, q, 0.2, -1, 0, 0.1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("negative intensity: got %v", err)
	}
}
