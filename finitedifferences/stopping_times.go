package finitedifferences

import (
	"math"
	"sort"
)

// StoppingTimes is an ascending, duplicate-free set of times at which the
// rollback must land exactly.
type StoppingTimes struct {
	times []float64
}

// NewStoppingTimes sorts and deduplicates times. NaN values are discarded.
func NewStoppingTimes(times ...float64) StoppingTimes {
	sorted := make([]float64, 0, len(times))
	for _, t := range times {
		if !math.IsNaN(t) {
			sorted = append(sorted, t)
		}
	}
	sort.Float64s(sorted)
	return StoppingTimes{times: removeDuplicates(sorted)}
}

func removeDuplicates(sorted []float64) []float64 {
	if len(sorted) == 0 {
		return sorted
	}
	result := []float64{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			result = append(result, sorted[i])
		}
	}
	return result
}

func (s StoppingTimes) Len() int { return len(s.times) }

// Times returns a copy of the sorted times.
func (s StoppingTimes) Times() []float64 {
	out := make([]float64, len(s.times))
	copy(out, s.times)
	return out
}

func (s StoppingTimes) At(i int) float64 { return s.times[i] }

// Contains reports whether t is one of the stopping times.
func (s StoppingTimes) Contains(t float64) bool {
	i := sort.SearchFloat64s(s.times, t)
	return i < len(s.times) && s.times[i] == t
}
