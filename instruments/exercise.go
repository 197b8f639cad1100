package instruments

import (
	"fmt"
	"sort"
	"time"
)

type ExerciseType int

const (
	European ExerciseType = iota
	American
	Bermudan
)

func (t ExerciseType) String() string {
	switch t {
	case European:
		return "european"
	case American:
		return "american"
	case Bermudan:
		return "bermudan"
	}
	return fmt.Sprintf("ExerciseType(%d)", int(t))
}

// Exercise is the set of dates on which an option may be exercised. For
// American exercise Dates holds the earliest and latest date of the window.
type Exercise struct {
	Type           ExerciseType
	Dates          []time.Time
	PayoffAtExpiry bool
}

func NewEuropeanExercise(date time.Time) *Exercise {
	return &Exercise{Type: European, Dates: []time.Time{date}}
}

func NewAmericanExercise(earliest, latest time.Time) (*Exercise, error) {
	if latest.Before(earliest) {
		return nil, fmt.Errorf("%w: American window %s after %s",
			ErrInvalidArgument, earliest.Format(time.DateOnly), latest.Format(time.DateOnly))
	}
	return &Exercise{Type: American, Dates: []time.Time{earliest, latest}}, nil
}

// NewBermudanExercise sorts dates. A single date degenerates to European
// exercise with no payoff at expiry.
func NewBermudanExercise(dates []time.Time, payoffAtExpiry bool) (*Exercise, error) {
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: empty exercise dates", ErrInvalidArgument)
	}
	sorted := append([]time.Time(nil), dates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	if len(sorted) == 1 {
		return NewEuropeanExercise(sorted[0]), nil
	}
	return &Exercise{Type: Bermudan, Dates: sorted, PayoffAtExpiry: payoffAtExpiry}, nil
}

func (e *Exercise) LastDate() time.Time { return e.Dates[len(e.Dates)-1] }

// Times converts the exercise dates into times with the given clock.
func (e *Exercise) Times(timeOf func(time.Time) float64) []float64 {
	times := make([]float64, len(e.Dates))
	for i, d := range e.Dates {
		times[i] = timeOf(d)
	}
	return times
}

// VanillaOption is a single-asset option with a striked payoff.
type VanillaOption struct {
	Payoff   StrikedPayoff
	Exercise *Exercise
}

func NewVanillaOption(payoff StrikedPayoff, exercise *Exercise) (*VanillaOption, error) {
	if payoff == nil || exercise == nil || len(exercise.Dates) == 0 {
		return nil, fmt.Errorf("%w: option needs a payoff and an exercise", ErrInvalidArgument)
	}
	return &VanillaOption{Payoff: payoff, Exercise: exercise}, nil
}
