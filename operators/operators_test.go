package operators_test

import (
	"errors"
	"math"
	"testing"

	"github.com/bcdannyboy/fdm/operators"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// trapezoidal L2 norm of f on a uniform grid of spacing h
func norm(f []float64, h float64) float64 {
	sum := 0.0
	for _, v := range f {
		sum += v * v
	}
	sum -= 0.5 * f[0] * f[0]
	sum -= 0.5 * f[len(f)-1] * f[len(f)-1]
	return math.Sqrt(sum * h)
}

func TestDerivativeConsistency(t *testing.T) {
	normal := distuv.Normal{Mu: 0, Sigma: 1}
	xMin, xMax := -4.0, 4.0
	const n = 10001
	h := (xMax - xMin) / (n - 1)

	y := make([]float64, n)
	yi := make([]float64, n)
	yd := make([]float64, n)
	for i := 0; i < n; i++ {
		x := xMin + h*float64(i)
		y[i] = normal.Prob(x)
		yi[i] = normal.CDF(x)
		yd[i] = -x * normal.Prob(x)
	}

	D, err := operators.DZero(n, h)
	if err != nil {
		t.Fatalf("DZero: %v", err)
	}
	D2, err := operators.DPlusMinus(n, h)
	if err != nil {
		t.Fatalf("DPlusMinus: %v", err)
	}

	first, err := D.Apply(yi)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	diff := make([]float64, n)
	floats.SubTo(diff, y, first)
	if e := norm(diff, h); e > 1e-6 {
		t.Errorf("norm of 1st derivative of cum minus Gaussian: %g", e)
	}

	second, err := D2.Apply(yi)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	floats.SubTo(diff, yd, second)
	if e := norm(diff, h); e > 1e-4 {
		t.Errorf("norm of 2nd derivative of cum minus Gaussian derivative: %g", e)
	}
}

type flatCoefficients struct {
	r, q, sigma float64
}

func (c flatCoefficients) RiskFreeForward(float64) float64          { return c.r }
func (c flatCoefficients) DividendForward(float64) float64          { return c.q }
func (c flatCoefficients) LocalVolatility(float64, float64) float64 { return c.sigma }

func TestBSMOperatorConsistency(t *testing.T) {
	grid := make([]float64, 10)
	price, factor := 20.0, 1.1
	for i := range grid {
		grid[i] = price
		price *= factor
	}
	dx := math.Log(factor)
	coeffs := flatCoefficients{r: 0.05, q: 0.01, sigma: 0.5}

	ref, err := operators.NewBSMOperator(len(grid), dx, coeffs.r, coeffs.q, coeffs.sigma)
	if err != nil {
		t.Fatalf("reference operator: %v", err)
	}
	fromProcess, err := operators.NewBSMOperatorFromProcess(grid, coeffs, 2.0)
	if err != nil {
		t.Fatalf("process operator: %v", err)
	}
	term, err := operators.NewBSMTermOperator(grid, coeffs, 2.0)
	if err != nil {
		t.Fatalf("term operator: %v", err)
	}
	if !term.IsTimeDependent() || fromProcess.IsTimeDependent() {
		t.Fatalf("unexpected time dependence: term=%v process=%v", term.IsTimeDependent(), fromProcess.IsTimeDependent())
	}

	const tol = 1e-6
	for _, op := range []*operators.Tridiagonal{fromProcess, term} {
		for i := 2; i < len(grid)-2; i++ {
			if math.Abs(ref.Lower[i-1]-op.Lower[i-1]) > tol ||
				math.Abs(ref.Diag[i]-op.Diag[i]) > tol ||
				math.Abs(ref.Upper[i]-op.Upper[i]) > tol {
				t.Errorf("row %d: expected %v %v %v, got %v %v %v", i,
					ref.Lower[i-1], ref.Diag[i], ref.Upper[i],
					op.Lower[i-1], op.Diag[i], op.Upper[i])
			}
		}
	}
}

type stepVol struct{ flatCoefficients }

func (s stepVol) LocalVolatility(t, _ float64) float64 {
	if t < 1 {
		return 0.1
	}
	return s.sigma
}

func TestBSMTermOperatorSetTime(t *testing.T) {
	grid := []float64{80, 90, 100, 110, 120}
	coeffs := stepVol{flatCoefficients{r: 0.03, sigma: 0.4}}

	L, err := operators.NewBSMTermOperator(grid, coeffs, 2.0)
	if err != nil {
		t.Fatalf("term operator: %v", err)
	}
	late := L.Diag[2]
	L.SetTime(0.5)
	early := L.Diag[2]
	if late <= early {
		t.Fatalf("higher volatility should increase the diagonal: late=%v early=%v", late, early)
	}
}

func TestSolveForInvertsApply(t *testing.T) {
	L, err := operators.NewTridiagonalFromDiagonals(
		[]float64{-1, -1, -1, -1},
		[]float64{4, 4, 4, 4, 4},
		[]float64{-1, -1, -1, -1},
	)
	if err != nil {
		t.Fatalf("operator: %v", err)
	}
	x := []float64{1, -2, 3, 0.5, 7}
	b, err := L.Apply(x)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, err := L.SolveFor(b)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if !floats.EqualApprox(got, x, 1e-12) {
		t.Fatalf("solve(apply(x)) = %v, want %v", got, x)
	}
}

func TestSolveForErrors(t *testing.T) {
	L, err := operators.NewTridiagonal(3)
	if err != nil {
		t.Fatalf("operator: %v", err)
	}
	if _, err := L.SolveFor([]float64{1, 2, 3}); !errors.Is(err, operators.ErrSingular) {
		t.Errorf("zero operator: got %v, want ErrSingular", err)
	}
	I, _ := operators.Identity(3)
	if _, err := I.Apply([]float64{1, 2}); !errors.Is(err, operators.ErrSizeMismatch) {
		t.Errorf("short vector: got %v, want ErrSizeMismatch", err)
	}
	if _, err := operators.DZero(2, 0.1); !errors.Is(err, operators.ErrSizeMismatch) {
		t.Errorf("tiny grid: got %v, want ErrSizeMismatch", err)
	}
}

func TestTridiagonalSize(t *testing.T) {
	for _, n := range []int{-1, 0, 1} {
		if _, err := operators.NewTridiagonal(n); !errors.Is(err, operators.ErrSizeMismatch) {
			t.Errorf("NewTridiagonal(%d): got %v, want ErrSizeMismatch", n, err)
		}
		if _, err := operators.Identity(n); !errors.Is(err, operators.ErrSizeMismatch) {
			t.Errorf("Identity(%d): got %v, want ErrSizeMismatch", n, err)
		}
	}
	I, err := operators.Identity(2)
	if err != nil {
		t.Fatalf("Identity(2): %v", err)
	}
	if got, err := I.Apply([]float64{3, 4}); err != nil || !floats.Equal(got, []float64{3, 4}) {
		t.Errorf("Identity(2).Apply = %v, %v", got, err)
	}
}

func TestSolveForPivots(t *testing.T) {
	// zero leading pivot, solvable with a row interchange
	L, err := operators.NewTridiagonalFromDiagonals(
		[]float64{1, 1},
		[]float64{0, 2, 3},
		[]float64{1, 1},
	)
	if err != nil {
		t.Fatalf("operator: %v", err)
	}
	x := []float64{1, 2, 3}
	b, err := L.Apply(x)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if want := []float64{2, 8, 11}; !floats.Equal(b, want) {
		t.Fatalf("apply = %v, want %v", b, want)
	}
	got, err := L.SolveFor(b)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if !floats.EqualApprox(got, x, 1e-12) {
		t.Errorf("solve = %v, want %v", got, x)
	}
	if L.Diag[0] != 0 || L.Lower[0] != 1 || L.Upper[1] != 1 {
		t.Errorf("operator modified by solve: %v %v %v", L.Lower, L.Diag, L.Upper)
	}
}

func TestIdentityPlus(t *testing.T) {
	D2, _ := operators.DPlusMinus(5, 1)
	A := D2.IdentityPlus(-0.5)
	if A.Diag[2] != 2 || A.Lower[1] != -0.5 || A.Upper[2] != -0.5 {
		t.Fatalf("unexpected row: %v %v %v", A.Lower[1], A.Diag[2], A.Upper[2])
	}
	if D2.Diag[2] != -2 {
		t.Fatalf("receiver modified: %v", D2.Diag[2])
	}
	I, _ := operators.Identity(5)
	sum, err := D2.Add(I)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if want := []float64{1, -1, -1, -1, 1}; !floats.Equal(sum.Diag, want) {
		t.Fatalf("add: got diagonal %v, want %v", sum.Diag, want)
	}
	if scaled := D2.Scale(2); scaled.Upper[1] != 2 || scaled.Diag[1] != -4 {
		t.Fatalf("scale: unexpected row %v %v", scaled.Diag[1], scaled.Upper[1])
	}
}

func TestBoundaryConditions(t *testing.T) {
	tests := []struct {
		name      string
		bc        operators.BoundaryCondition[*operators.Tridiagonal]
		applied   []float64
		solvedRHS []float64
	}{
		{"dirichlet lower", operators.NewDirichletBC(9, operators.Lower), []float64{9, 2, 3, 4}, []float64{9, 2, 3, 4}},
		{"dirichlet upper", operators.NewDirichletBC(9, operators.Upper), []float64{1, 2, 3, 9}, []float64{1, 2, 3, 9}},
		{"neumann lower", operators.NewNeumannBC(0.5, operators.Lower), []float64{1.5, 2, 3, 4}, []float64{0.5, 2, 3, 4}},
		{"neumann upper", operators.NewNeumannBC(0.5, operators.Upper), []float64{1, 2, 3, 3.5}, []float64{1, 2, 3, 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := []float64{1, 2, 3, 4}
			tt.bc.ApplyAfterApplying(u)
			if !floats.Equal(u, tt.applied) {
				t.Errorf("after applying: got %v, want %v", u, tt.applied)
			}

			L, err := operators.Identity(4)
			if err != nil {
				t.Fatalf("identity: %v", err)
			}
			rhs := []float64{1, 2, 3, 4}
			tt.bc.ApplyBeforeSolving(L, rhs)
			if !floats.Equal(rhs, tt.solvedRHS) {
				t.Errorf("rhs before solving: got %v, want %v", rhs, tt.solvedRHS)
			}
			x, err := L.SolveFor(rhs)
			if err != nil {
				t.Fatalf("solve: %v", err)
			}
			if want := tt.applied; !floats.EqualApprox(x, want, 1e-12) {
				t.Errorf("solution: got %v, want %v", x, want)
			}
		})
	}
}
