package finitedifferences

import (
	"fmt"
	"log/slog"

	"github.com/bcdannyboy/fdm/operators"
)

// Model drives an Evolver backwards in time across a set of stopping times.
type Model struct {
	evolver       Evolver
	stoppingTimes StoppingTimes
	logger        *slog.Logger
}

type Option func(*Model)

// WithLogger logs sub-step splicing at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) { m.logger = l }
}

func NewModel(evolver Evolver, stoppingTimes []float64, opts ...Option) *Model {
	m := &Model{
		evolver:       evolver,
		stoppingTimes: NewStoppingTimes(stoppingTimes...),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewThetaModel builds a model over a MixedScheme for operator L.
func NewThetaModel[O operators.Operator[O]](L O, bcs []operators.BoundaryCondition[O], theta float64, stoppingTimes []float64, opts ...Option) (*Model, error) {
	scheme, err := NewMixedScheme(L, theta, bcs)
	if err != nil {
		return nil, err
	}
	return NewModel(scheme, stoppingTimes, opts...), nil
}

func (m *Model) Evolver() Evolver { return m.evolver }

func (m *Model) StoppingTimes() StoppingTimes { return m.stoppingTimes }

// Rollback evolves a from time from back to time to in steps uniform
// steps. Every stopping time in [to, from] is landed on exactly, with
// condition applied there; condition is also applied at the end of every
// regular step. A nil condition is allowed.
func (m *Model) Rollback(a []float64, from, to float64, steps int, condition StepCondition) error {
	if !(from > to) {
		return fmt.Errorf("%w: trying to roll back from %v to %v", ErrInvalidTimeRange, from, to)
	}
	if steps <= 0 {
		return fmt.Errorf("%w: number of steps must be positive, got %d", ErrInvalidArgument, steps)
	}

	dt := (from - to) / float64(steps)
	m.evolver.SetStep(dt)

	if condition != nil && m.stoppingTimes.Contains(from) {
		condition.ApplyTo(a, from)
	}

	for i := 0; i < steps; i++ {
		now := from - float64(i)*dt
		next := from - float64(i+1)*dt
		if i == steps-1 {
			next = to
		}

		hit := false
		for j := m.stoppingTimes.Len() - 1; j >= 0; j-- {
			st := m.stoppingTimes.At(j)
			if next <= st && st < now {
				hit = true

				m.evolver.SetStep(now - st)
				if err := m.evolver.Step(a, now); err != nil {
					return fmt.Errorf("step to stopping time %v: %w", st, err)
				}
				if condition != nil {
					condition.ApplyTo(a, st)
				}
				if m.logger != nil {
					m.logger.Debug("stopping time hit", "step", i, "from", now, "to", st)
				}
				now = st
			}
		}

		if hit {
			if now > next {
				m.evolver.SetStep(now - next)
				if err := m.evolver.Step(a, now); err != nil {
					return fmt.Errorf("step from %v to %v: %w", now, next, err)
				}
				if condition != nil {
					condition.ApplyTo(a, next)
				}
			}
			m.evolver.SetStep(dt)
			continue
		}

		if err := m.evolver.Step(a, now); err != nil {
			return fmt.Errorf("step from %v to %v: %w", now, next, err)
		}
		if condition != nil {
			condition.ApplyTo(a, next)
		}
	}
	return nil
}
