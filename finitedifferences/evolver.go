// Package finitedifferences rolls finite-difference solutions back in time
// over a discretized operator, honouring stopping times and step
// conditions.
package finitedifferences

import (
	"errors"
	"fmt"

	"github.com/bcdannyboy/fdm/operators"
)

var (
	ErrInvalidTimeRange = errors.New("finitedifferences: invalid time range")
	ErrInvalidArgument  = errors.New("finitedifferences: invalid argument")
)

// Evolver advances a state vector by one time step. SetStep may be called
// between any two steps.
type Evolver interface {
	SetStep(dt float64)
	// Step evolves a in place from time t back to t-dt.
	Step(a []float64, t float64) error
}

// MixedScheme is the theta scheme
//
//	(I + theta*dt*L) a(t-dt) = (I - (1-theta)*dt*L) a(t)
//
// with theta=0 explicit Euler, theta=1 implicit Euler and theta=1/2
// Crank-Nicolson.
type MixedScheme[O operators.Operator[O]] struct {
	L     O
	bcs   []operators.BoundaryCondition[O]
	theta float64
	dt    float64

	explicitPart O
	implicitPart O
	ready        bool
}

var _ Evolver = (*MixedScheme[*operators.Tridiagonal])(nil)

func NewMixedScheme[O operators.Operator[O]](L O, theta float64, bcs []operators.BoundaryCondition[O]) (*MixedScheme[O], error) {
	if !(theta >= 0 && theta <= 1) {
		return nil, fmt.Errorf("%w: theta must lie in [0, 1], got %v", ErrInvalidArgument, theta)
	}
	return &MixedScheme[O]{
		L:     L,
		bcs:   bcs,
		theta: theta,
	}, nil
}

func NewExplicitEuler[O operators.Operator[O]](L O, bcs []operators.BoundaryCondition[O]) *MixedScheme[O] {
	s, _ := NewMixedScheme(L, 0, bcs)
	return s
}

func NewImplicitEuler[O operators.Operator[O]](L O, bcs []operators.BoundaryCondition[O]) *MixedScheme[O] {
	s, _ := NewMixedScheme(L, 1, bcs)
	return s
}

func NewCrankNicolson[O operators.Operator[O]](L O, bcs []operators.BoundaryCondition[O]) *MixedScheme[O] {
	s, _ := NewMixedScheme(L, 0.5, bcs)
	return s
}

func (s *MixedScheme[O]) Theta() float64 { return s.theta }

// CurrentStep returns the step size set by the last SetStep call.
func (s *MixedScheme[O]) CurrentStep() float64 { return s.dt }

func (s *MixedScheme[O]) SetStep(dt float64) {
	s.dt = dt
	s.ready = true
	if s.theta != 1 {
		s.explicitPart = s.L.IdentityPlus(-(1 - s.theta) * dt)
	}
	if s.theta != 0 {
		s.implicitPart = s.L.IdentityPlus(s.theta * dt)
	}
}

func (s *MixedScheme[O]) Step(a []float64, t float64) error {
	if !s.ready {
		return fmt.Errorf("%w: step size not set", ErrInvalidArgument)
	}
	for _, bc := range s.bcs {
		bc.SetTime(t)
	}

	if s.theta != 1 {
		if s.L.IsTimeDependent() {
			s.L.SetTime(t)
			s.explicitPart = s.L.IdentityPlus(-(1 - s.theta) * s.dt)
		}
		for _, bc := range s.bcs {
			bc.ApplyBeforeApplying(s.explicitPart)
		}
		next, err := s.explicitPart.Apply(a)
		if err != nil {
			return fmt.Errorf("explicit part at t=%v: %w", t, err)
		}
		copy(a, next)
		for _, bc := range s.bcs {
			bc.ApplyAfterApplying(a)
		}
	}

	if s.theta != 0 {
		if s.L.IsTimeDependent() {
			s.L.SetTime(t - s.dt)
			s.implicitPart = s.L.IdentityPlus(s.theta * s.dt)
		}
		for _, bc := range s.bcs {
			bc.ApplyBeforeSolving(s.implicitPart, a)
		}
		next, err := s.implicitPart.SolveFor(a)
		if err != nil {
			return fmt.Errorf("implicit part at t=%v: %w", t, err)
		}
		copy(a, next)
		for _, bc := range s.bcs {
			bc.ApplyAfterSolving(a)
		}
	}
	return nil
}
