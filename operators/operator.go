// Package operators holds the discretized linear spatial operators used by
// the finite-difference schemes, together with the boundary conditions that
// rewrite their edge rows.
package operators

import "errors"

var (
	ErrSizeMismatch = errors.New("operators: size mismatch")
	ErrSingular     = errors.New("operators: singular system")
)

// Operator is a linear operator acting on state vectors. O is the concrete
// operator type, so that combinations such as I + c*L keep their type.
type Operator[O any] interface {
	Size() int
	Apply(v []float64) ([]float64, error)
	SolveFor(rhs []float64) ([]float64, error)
	IsTimeDependent() bool
	SetTime(t float64)
	// IdentityPlus returns I + c*L as a new operator; the receiver is untouched.
	IdentityPlus(c float64) O
}

// Side selects the grid edge a boundary condition acts on.
type Side int

const (
	Lower Side = iota
	Upper
)

func (s Side) String() string {
	switch s {
	case Lower:
		return "lower"
	case Upper:
		return "upper"
	default:
		return "unknown"
	}
}

// BoundaryCondition modifies an operator's edge rows, and the state vector,
// around the apply and solve phases of a time step.
type BoundaryCondition[O any] interface {
	ApplyBeforeApplying(L O)
	ApplyAfterApplying(u []float64)
	ApplyBeforeSolving(L O, rhs []float64)
	ApplyAfterSolving(u []float64)
	SetTime(t float64)
}
