package models

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalidArgument = errors.New("models: invalid argument")
	ErrNotImplemented  = errors.New("models: not implemented")
)

// StochasticProcess is the view of a process used by Monte Carlo callers.
// Size is the state dimension and Factors the number of independent normal
// shocks consumed per Evolve call.
type StochasticProcess interface {
	Size() int
	Factors() int
	InitialValues() []float64
	Drift(t float64, x []float64) ([]float64, error)
	Diffusion(t float64, x []float64) (*mat.Dense, error)
	Evolve(t0 float64, x0 []float64, dt float64, dw []float64) ([]float64, error)
	Apply(x0, dx []float64) []float64
}

func discount(r, t float64) float64 {
	return math.Exp(-r * t)
}
