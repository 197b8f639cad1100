package finitedifferences

import "math"

// StepCondition is applied to the state vector at the end of each
// (sub-)step of a rollback.
type StepCondition interface {
	ApplyTo(a []float64, t float64)
}

// StepConditionFunc adapts a plain function to StepCondition.
type StepConditionFunc func(a []float64, t float64)

func (f StepConditionFunc) ApplyTo(a []float64, t float64) { f(a, t) }

// NullCondition leaves the state untouched.
type NullCondition struct{}

func (NullCondition) ApplyTo([]float64, float64) {}

// AmericanCondition floors the state at the intrinsic values on every call.
type AmericanCondition struct {
	intrinsic []float64
}

func NewAmericanCondition(intrinsic []float64) *AmericanCondition {
	v := make([]float64, len(intrinsic))
	copy(v, intrinsic)
	return &AmericanCondition{intrinsic: v}
}

func (c *AmericanCondition) ApplyTo(a []float64, _ float64) {
	for i := range a {
		a[i] = math.Max(a[i], c.intrinsic[i])
	}
}

// ExerciseCondition floors the state at the intrinsic values only at the
// given exercise times, as for a Bermudan option.
type ExerciseCondition struct {
	american *AmericanCondition
	times    StoppingTimes
}

func NewExerciseCondition(intrinsic []float64, times StoppingTimes) *ExerciseCondition {
	return &ExerciseCondition{
		american: NewAmericanCondition(intrinsic),
		times:    times,
	}
}

func (c *ExerciseCondition) ApplyTo(a []float64, t float64) {
	if c.times.Contains(t) {
		c.american.ApplyTo(a, t)
	}
}
