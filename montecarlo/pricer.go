// Package montecarlo prices European payoffs by simulating any
// models.StochasticProcess in parallel.
package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/bcdannyboy/fdm/instruments"
	"github.com/bcdannyboy/fdm/models"
	"github.com/shirou/gopsutil/cpu"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var ErrInvalidArgument = errors.New("montecarlo: invalid argument")

const (
	DefaultPaths     = 10000
	DefaultSteps     = 100
	DefaultBatchSize = 500
)

type Result struct {
	Price  float64
	StdErr float64
	Paths  int
}

// Pricer simulates paths of a process and averages the discounted payoff of
// the first state component at maturity. Paths are split in batches, each
// with its own random source seeded from the pricer seed and the batch
// index, so the result does not depend on the number of workers.
type Pricer struct {
	process   models.StochasticProcess
	payoff    instruments.Payoff
	maturity  float64
	discount  float64
	paths     int
	steps     int
	batchSize int
	workers   int
	seed      uint64
	progress  func(done int)
	logger    *slog.Logger
}

type Option func(*Pricer)

func WithPaths(n int) Option     { return func(p *Pricer) { p.paths = n } }
func WithSteps(n int) Option     { return func(p *Pricer) { p.steps = n } }
func WithBatchSize(n int) Option { return func(p *Pricer) { p.batchSize = n } }
func WithWorkers(n int) Option   { return func(p *Pricer) { p.workers = n } }
func WithSeed(seed uint64) Option {
	return func(p *Pricer) { p.seed = seed }
}

// WithProgress registers a callback receiving the number of paths of every
// finished batch. It is called from worker goroutines.
func WithProgress(fn func(done int)) Option {
	return func(p *Pricer) { p.progress = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pricer) { p.logger = l }
}

// NewPricer prices payoff at maturity with the given discount factor.
func NewPricer(process models.StochasticProcess, payoff instruments.Payoff, maturity, discount float64, opts ...Option) (*Pricer, error) {
	if process == nil || payoff == nil {
		return nil, fmt.Errorf("%w: missing process or payoff", ErrInvalidArgument)
	}
	if !(maturity > 0) {
		return nil, fmt.Errorf("%w: maturity %v", ErrInvalidArgument, maturity)
	}
	p := &Pricer{
		process:   process,
		payoff:    payoff,
		maturity:  maturity,
		discount:  discount,
		paths:     DefaultPaths,
		steps:     DefaultSteps,
		batchSize: DefaultBatchSize,
		seed:      1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.paths < 2 || p.steps < 1 || p.batchSize < 1 {
		return nil, fmt.Errorf("%w: paths %d, steps %d, batch size %d", ErrInvalidArgument, p.paths, p.steps, p.batchSize)
	}
	if p.workers <= 0 {
		p.workers = defaultWorkers()
	}
	return p, nil
}

func defaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func (p *Pricer) Workers() int { return p.workers }

func (p *Pricer) Paths() int { return p.paths }

type batch struct {
	index      int
	start, end int
}

func (p *Pricer) Price(ctx context.Context) (Result, error) {
	values := make([]float64, p.paths)
	batches := make(chan batch)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(batches)
		for i, start := 0, 0; start < p.paths; i, start = i+1, start+p.batchSize {
			end := start + p.batchSize
			if end > p.paths {
				end = p.paths
			}
			select {
			case batches <- batch{index: i, start: start, end: end}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < p.workers; w++ {
		g.Go(func() error {
			for b := range batches {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := p.simulate(b, values[b.start:b.end]); err != nil {
					return err
				}
				if p.progress != nil {
					p.progress(b.end - b.start)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	mean, std := stat.MeanStdDev(values, nil)
	res := Result{
		Price:  mean,
		StdErr: std / math.Sqrt(float64(p.paths)),
		Paths:  p.paths,
	}
	if p.logger != nil {
		p.logger.Debug("monte carlo done",
			"paths", res.Paths,
			"steps", p.steps,
			"workers", p.workers,
			"price", res.Price,
			"stderr", res.StdErr,
		)
	}
	return res, nil
}

// simulate fills out with the discounted payoffs of one batch of paths.
func (p *Pricer) simulate(b batch, out []float64) error {
	normal := distuv.Normal{
		Mu:    0,
		Sigma: 1,
		Src:   rand.NewSource(p.seed + uint64(b.index)*0x9E3779B97F4A7C15),
	}
	dt := p.maturity / float64(p.steps)
	dw := make([]float64, p.process.Factors())

	for i := range out {
		x := p.process.InitialValues()
		t := 0.0
		for s := 0; s < p.steps; s++ {
			for k := range dw {
				dw[k] = normal.Rand()
			}
			next, err := p.process.Evolve(t, x, dt, dw)
			if err != nil {
				return fmt.Errorf("path %d, step %d: %w", b.start+i, s, err)
			}
			x = next
			t += dt
		}
		out[i] = p.discount * p.payoff.Value(x[0])
	}
	return nil
}
