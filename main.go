package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/bcdannyboy/fdm/config"
	"github.com/bcdannyboy/fdm/engines"
	"github.com/bcdannyboy/fdm/instruments"
	"github.com/bcdannyboy/fdm/logging"
	"github.com/bcdannyboy/fdm/marketdata"
	"github.com/bcdannyboy/fdm/models"
	"github.com/bcdannyboy/fdm/montecarlo"
	mpb "github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"github.com/xhhuango/json"
)

const (
	spot         = 100.0
	riskFreeRate = 0.05
	dividendRate = 0.02
	volatility   = 0.20

	hestonV0    = 0.04
	hestonKappa = 1.5
	hestonTheta = 0.04
	hestonSigma = 0.3
	hestonRho   = -0.7

	jumpIntensity = 0.5
	jumpMean      = -0.1
	jumpVol       = 0.15
)

var strikes = []float64{90, 100, 110}

type OptionResult struct {
	Type       string  `json:"type"`
	Exercise   string  `json:"exercise"`
	Strike     float64 `json:"strike"`
	Maturity   string  `json:"maturity"`
	Value      float64 `json:"value"`
	Delta      float64 `json:"delta"`
	Gamma      float64 `json:"gamma"`
	ClosedForm float64 `json:"closed_form,omitempty"`
	ImpliedVol float64 `json:"implied_vol,omitempty"`
}

type HestonResult struct {
	Scheme string  `json:"scheme"`
	Strike float64 `json:"strike"`
	Price  float64 `json:"price"`
	StdErr float64 `json:"std_err"`
	Paths  int     `json:"paths"`
}

type JumpResult struct {
	Strike float64 `json:"strike"`
	Price  float64 `json:"price"`
	StdErr float64 `json:"std_err"`
	Series float64 `json:"series"`
}

type Report struct {
	EvaluationDate string         `json:"evaluation_date"`
	Scheme         string         `json:"scheme"`
	Volatility     float64        `json:"volatility"`
	VolSource      string         `json:"vol_source"`
	Options        []OptionResult `json:"options"`
	SpotBump       []OptionResult `json:"spot_bump"`
	Heston         HestonResult   `json:"heston"`
	Jump           JumpResult     `json:"jump"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %s\n", err.Error())
		os.Exit(1)
	}
	logger, closer, err := logging.New(cfg.Logging())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %s\n", err.Error())
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("run failed", "error", err)
		closer.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	evalDate := cfg.EvaluationDate
	logger.Info("pricing book",
		"evaluation_date", evalDate.Format(time.DateOnly),
		"scheme", cfg.Scheme,
		"grid_points", cfg.GridPoints,
		"time_steps", cfg.TimeSteps,
	)

	spotQuote := models.NewSimpleQuote(spot)
	volQuote := models.NewSimpleQuote(volatility)
	riskFree := models.NewFlatForward(evalDate, models.NewSimpleQuote(riskFreeRate), models.Actual365Fixed{})
	dividend := models.NewFlatForward(evalDate, models.NewSimpleQuote(dividendRate), models.Actual365Fixed{})
	process := models.NewBlackScholesProcess(spotQuote, riskFree, dividend, models.ConstantVol{Quote: volQuote})

	volSource := "default"
	if cfg.HistoryFile != "" {
		bars, err := marketdata.LoadHistory(cfg.HistoryFile)
		if err != nil {
			return err
		}
		vol, err := models.RealizedVolatility(bars, cfg.VolWindow, cfg.VolEstimator)
		if err != nil {
			return fmt.Errorf("estimating volatility from %s: %w", cfg.HistoryFile, err)
		}
		volQuote.SetValue(vol)
		volSource = cfg.VolEstimator.String()
		logger.Info("estimated volatility", "estimator", volSource, "window", cfg.VolWindow, "bars", len(bars), "volatility", vol)
	}

	engine, err := engines.NewFDVanillaEngine(process, cfg.GridPoints, cfg.TimeSteps,
		engines.WithTheta(cfg.Theta()), engines.WithLogger(logger))
	if err != nil {
		return err
	}

	book, err := sampleBook(evalDate)
	if err != nil {
		return err
	}

	report := Report{
		EvaluationDate: evalDate.Format(time.DateOnly),
		Scheme:         cfg.Scheme,
		Volatility:     volQuote.Value(),
		VolSource:      volSource,
	}
	for _, option := range book {
		res, err := priceOption(engine, process, option)
		if err != nil {
			return err
		}
		report.Options = append(report.Options, res)
	}

	// quotes are live: moving the spot reprices without rebuilding anything
	spotQuote.SetValue(spot * 1.01)
	for _, option := range book {
		if option.Exercise.Type != instruments.European {
			continue
		}
		res, err := priceOption(engine, process, option)
		if err != nil {
			return err
		}
		report.SpotBump = append(report.SpotBump, res)
	}
	spotQuote.SetValue(spot)

	report.Heston, err = priceHeston(ctx, cfg, riskFree, dividend, spotQuote, logger)
	if err != nil {
		return err
	}

	report.Jump, err = priceJump(ctx, cfg, riskFree, dividend, spotQuote, volQuote.Value(), logger)
	if err != nil {
		return err
	}

	return writeReport(cfg.Output, report, logger)
}

func sampleBook(evalDate time.Time) ([]*instruments.VanillaOption, error) {
	maturity := evalDate.AddDate(1, 0, 0)
	american, err := instruments.NewAmericanExercise(evalDate, maturity)
	if err != nil {
		return nil, err
	}
	bermudan, err := instruments.NewBermudanExercise([]time.Time{
		evalDate.AddDate(0, 3, 0),
		evalDate.AddDate(0, 6, 0),
		evalDate.AddDate(0, 9, 0),
		maturity,
	}, false)
	if err != nil {
		return nil, err
	}

	var book []*instruments.VanillaOption
	for _, typ := range []instruments.OptionType{instruments.Call, instruments.Put} {
		for _, k := range strikes {
			payoff, err := instruments.NewPlainVanillaPayoff(typ, k)
			if err != nil {
				return nil, err
			}
			for _, ex := range []*instruments.Exercise{instruments.NewEuropeanExercise(maturity), american, bermudan} {
				option, err := instruments.NewVanillaOption(payoff, ex)
				if err != nil {
					return nil, err
				}
				book = append(book, option)
			}
		}
	}
	return book, nil
}

func priceOption(engine *engines.FDVanillaEngine, process *models.BlackScholesProcess, option *instruments.VanillaOption) (OptionResult, error) {
	fd, err := engine.Calculate(option)
	if err != nil {
		return OptionResult{}, err
	}
	payoff := option.Payoff
	res := OptionResult{
		Type:     payoff.Type().String(),
		Exercise: option.Exercise.Type.String(),
		Strike:   payoff.Strike(),
		Maturity: option.Exercise.LastDate().Format(time.DateOnly),
		Value:    fd.Value,
		Delta:    fd.Delta,
		Gamma:    fd.Gamma,
	}
	if option.Exercise.Type != instruments.European {
		return res, nil
	}

	T := process.Time(option.Exercise.LastDate())
	S := process.Spot().Value()
	r := process.RiskFreeForward(0)
	q := process.DividendForward(0)
	cf, err := engines.BlackScholesPrice(payoff.Type(), S, payoff.Strike(), T, r, q, process.LocalVolatility(0, S))
	if err != nil {
		return OptionResult{}, err
	}
	res.ClosedForm = cf.Price
	if iv, err := engines.ImpliedVolatility(fd.Value, payoff.Type(), S, payoff.Strike(), T, r, q); err == nil {
		res.ImpliedVol = iv
	}
	return res, nil
}

func priceHeston(ctx context.Context, cfg config.Config, riskFree, dividend models.YieldTermStructure, s0 models.Quote, logger *slog.Logger) (HestonResult, error) {
	q := models.NewSimpleQuote
	process, err := models.NewHestonProcess(riskFree, dividend, s0,
		q(hestonV0), q(hestonKappa), q(hestonTheta), q(hestonSigma), q(hestonRho), cfg.HestonScheme)
	if err != nil {
		return HestonResult{}, err
	}
	defer process.Close()

	const strike = 100.0
	payoff, err := instruments.NewPlainVanillaPayoff(instruments.Call, strike)
	if err != nil {
		return HestonResult{}, err
	}
	maturity := cfg.EvaluationDate.AddDate(1, 0, 0)
	T := process.Time(maturity)

	p := mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stderr))
	bar := p.AddBar(int64(cfg.Paths),
		mpb.PrependDecorators(
			decor.Name("Heston "+cfg.HestonScheme.String()),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("(%d / %d)", decor.WCSyncSpace),
		),
	)

	pricer, err := montecarlo.NewPricer(process, payoff, T, math.Exp(-riskFree.ForwardRate(0, T)*T),
		montecarlo.WithPaths(cfg.Paths),
		montecarlo.WithSeed(cfg.Seed),
		montecarlo.WithLogger(logger),
		montecarlo.WithProgress(func(n int) { bar.IncrBy(n) }),
	)
	if err != nil {
		bar.Abort(true)
		p.Wait()
		return HestonResult{}, err
	}
	logger.Info("running Heston Monte Carlo", "paths", cfg.Paths, "workers", pricer.Workers(), "scheme", cfg.HestonScheme.String())

	res, err := pricer.Price(ctx)
	if err != nil {
		bar.Abort(false)
	}
	p.Wait()
	if err != nil {
		return HestonResult{}, err
	}

	return HestonResult{
		Scheme: cfg.HestonScheme.String(),
		Strike: strike,
		Price:  res.Price,
		StdErr: res.StdErr,
		Paths:  res.Paths,
	}, nil
}

func priceJump(ctx context.Context, cfg config.Config, riskFree, dividend models.YieldTermStructure, s0 models.Quote, vol float64, logger *slog.Logger) (JumpResult, error) {
	process, err := models.NewMertonProcess(s0, riskFree, dividend, vol, jumpIntensity, jumpMean, jumpVol)
	if err != nil {
		return JumpResult{}, err
	}
	const strike = 90.0
	payoff, err := instruments.NewPlainVanillaPayoff(instruments.Put, strike)
	if err != nil {
		return JumpResult{}, err
	}
	T := process.Time(cfg.EvaluationDate.AddDate(1, 0, 0))
	r := riskFree.ForwardRate(0, T)

	pricer, err := montecarlo.NewPricer(process, payoff, T, math.Exp(-r*T),
		montecarlo.WithPaths(cfg.Paths),
		montecarlo.WithSeed(cfg.Seed),
		montecarlo.WithLogger(logger),
	)
	if err != nil {
		return JumpResult{}, err
	}
	res, err := pricer.Price(ctx)
	if err != nil {
		return JumpResult{}, err
	}
	series, err := engines.MertonJumpPrice(instruments.Put, s0.Value(), strike, T, r, dividend.ForwardRate(0, T),
		vol, jumpIntensity, jumpMean, jumpVol)
	if err != nil {
		return JumpResult{}, err
	}
	logger.Info("priced jump-diffusion put", "strike", strike, "monte_carlo", res.Price, "series", series)
	return JumpResult{Strike: strike, Price: res.Price, StdErr: res.StdErr, Series: series}, nil
}

func writeReport(path string, report Report, logger *slog.Logger) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}
	if path == "-" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	logger.Info("wrote report", "path", path, "options", len(report.Options))
	return nil
}
