package engines

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/bcdannyboy/fdm/finitedifferences"
	"github.com/bcdannyboy/fdm/instruments"
	"github.com/bcdannyboy/fdm/models"
	"github.com/bcdannyboy/fdm/operators"
)

const (
	DefaultGridPoints = 201
	DefaultTimeSteps  = 200

	// grid half-width in standard deviations, and the margin kept around the strike
	gridStdDevs  = 4.0
	strikeMargin = 1.1
)

// FDResult is the value and spot sensitivities read off the final grid.
type FDResult struct {
	Value float64
	Delta float64
	Gamma float64
}

// FDVanillaEngine prices European, American and Bermudan vanilla options by
// rolling the payoff back on a log-price grid centred at the spot.
type FDVanillaEngine struct {
	process    *models.BlackScholesProcess
	gridPoints int
	timeSteps  int
	theta      float64
	logger     *slog.Logger
}

type EngineOption func(*FDVanillaEngine)

// WithTheta selects the time scheme: 0 explicit, 1 implicit, 0.5
// Crank-Nicolson.
func WithTheta(theta float64) EngineOption {
	return func(e *FDVanillaEngine) { e.theta = theta }
}

func WithLogger(l *slog.Logger) EngineOption {
	return func(e *FDVanillaEngine) { e.logger = l }
}

func NewFDVanillaEngine(process *models.BlackScholesProcess, gridPoints, timeSteps int, opts ...EngineOption) (*FDVanillaEngine, error) {
	if process == nil {
		return nil, fmt.Errorf("%w: missing process", ErrInvalidArgument)
	}
	if gridPoints < 5 {
		return nil, fmt.Errorf("%w: need at least 5 grid points, got %d", ErrInvalidArgument, gridPoints)
	}
	if timeSteps < 1 {
		return nil, fmt.Errorf("%w: need at least one time step, got %d", ErrInvalidArgument, timeSteps)
	}
	// odd sizes put the spot on the middle node
	if gridPoints%2 == 0 {
		gridPoints++
	}
	e := &FDVanillaEngine{
		process:    process,
		gridPoints: gridPoints,
		timeSteps:  timeSteps,
		theta:      0.5,
	}
	for _, opt := range opts {
		opt(e)
	}
	if !(e.theta >= 0 && e.theta <= 1) {
		return nil, fmt.Errorf("%w: theta %v", ErrInvalidArgument, e.theta)
	}
	return e, nil
}

// grid returns a log-uniform price grid symmetric around spot, wide enough
// for the diffusion up to maturity and for the strike.
func (e *FDVanillaEngine) grid(spot, strike, maturity float64) []float64 {
	sigma := e.process.LocalVolatility(maturity, strike)
	prefactor := 1 + 0.02/maturity
	half := gridStdDevs * prefactor * sigma * math.Sqrt(maturity)
	if k := strikeMargin * math.Abs(math.Log(strike/spot)); k > half {
		half = k
	}
	if half == 0 {
		half = 1
	}

	n := e.gridPoints
	dx := 2 * half / float64(n-1)
	x0 := math.Log(spot) - half
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = math.Exp(x0 + float64(i)*dx)
	}
	prices[n/2] = spot
	return prices
}

func (e *FDVanillaEngine) Calculate(option *instruments.VanillaOption) (FDResult, error) {
	if option == nil {
		return FDResult{}, fmt.Errorf("%w: missing option", ErrInvalidArgument)
	}
	times := option.Exercise.Times(e.process.Time)
	maturity := times[len(times)-1]
	if !(maturity > 0) {
		return FDResult{}, fmt.Errorf("%w: option expired (maturity %v)", ErrInvalidArgument, maturity)
	}

	spot := e.process.Spot().Value()
	prices := e.grid(spot, option.Payoff.Strike(), maturity)
	n := len(prices)

	intrinsic := make([]float64, n)
	for i, s := range prices {
		intrinsic[i] = option.Payoff.Value(s)
	}

	L, err := operators.NewBSMTermOperator(prices, e.process, maturity)
	if err != nil {
		return FDResult{}, err
	}
	bcs := []operators.BoundaryCondition[*operators.Tridiagonal]{
		operators.NewNeumannBC(intrinsic[1]-intrinsic[0], operators.Lower),
		operators.NewNeumannBC(intrinsic[n-1]-intrinsic[n-2], operators.Upper),
	}

	var stoppingTimes []float64
	var condition finitedifferences.StepCondition
	switch option.Exercise.Type {
	case instruments.American:
		condition = finitedifferences.NewAmericanCondition(intrinsic)
	case instruments.Bermudan:
		for _, t := range times {
			if t >= 0 && t <= maturity {
				stoppingTimes = append(stoppingTimes, t)
			}
		}
		condition = finitedifferences.NewExerciseCondition(intrinsic, finitedifferences.NewStoppingTimes(stoppingTimes...))
	}

	var modelOpts []finitedifferences.Option
	if e.logger != nil {
		modelOpts = append(modelOpts, finitedifferences.WithLogger(e.logger))
		e.logger.Debug("fd grid",
			"exercise", option.Exercise.Type.String(),
			"points", n,
			"lo", prices[0],
			"hi", prices[n-1],
			"maturity", maturity,
			"steps", e.timeSteps,
			"theta", e.theta,
		)
	}
	model, err := finitedifferences.NewThetaModel(L, bcs, e.theta, stoppingTimes, modelOpts...)
	if err != nil {
		return FDResult{}, err
	}

	values := make([]float64, n)
	copy(values, intrinsic)
	if err := model.Rollback(values, maturity, 0, e.timeSteps, condition); err != nil {
		return FDResult{}, fmt.Errorf("rolling back %s option: %w", option.Exercise.Type, err)
	}

	i := n / 2
	dsUp := prices[i+1] - prices[i]
	dsDown := prices[i] - prices[i-1]
	slopeUp := (values[i+1] - values[i]) / dsUp
	slopeDown := (values[i] - values[i-1]) / dsDown
	return FDResult{
		Value: values[i],
		Delta: (values[i+1] - values[i-1]) / (prices[i+1] - prices[i-1]),
		Gamma: 2 * (slopeUp - slopeDown) / (prices[i+1] - prices[i-1]),
	}, nil
}
