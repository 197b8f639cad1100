package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
)

const tradingDaysPerYear = 252

// Bar is one daily open/high/low/close observation.
type Bar struct {
	Date                   time.Time
	Open, High, Low, Close float64
}

// Estimator names a realized volatility estimator over daily bars.
type Estimator int

const (
	CloseToClose Estimator = iota
	Parkinson
	GarmanKlass
	RogersSatchell
	YangZhang
)

func (e Estimator) String() string {
	switch e {
	case CloseToClose:
		return "close-to-close"
	case Parkinson:
		return "parkinson"
	case GarmanKlass:
		return "garman-klass"
	case RogersSatchell:
		return "rogers-satchell"
	case YangZhang:
		return "yang-zhang"
	}
	return fmt.Sprintf("Estimator(%d)", int(e))
}

func ParseEstimator(s string) (Estimator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "close-to-close", "close":
		return CloseToClose, nil
	case "parkinson", "parkinsons":
		return Parkinson, nil
	case "garman-klass", "gk":
		return GarmanKlass, nil
	case "rogers-satchell", "rs":
		return RogersSatchell, nil
	case "yang-zhang", "yz":
		return YangZhang, nil
	}
	return 0, fmt.Errorf("%w: unknown volatility estimator %q", ErrInvalidArgument, s)
}

// RealizedVolatility returns the annualized volatility of the last days bars
// (all of them when days <= 0).
func RealizedVolatility(bars []Bar, days int, e Estimator) (float64, error) {
	if days > 0 && days < len(bars) {
		bars = bars[len(bars)-days:]
	}
	if len(bars) < 2 {
		return 0, fmt.Errorf("%w: need at least 2 bars, got %d", ErrInvalidArgument, len(bars))
	}
	for i, b := range bars {
		if !(b.Open > 0 && b.High > 0 && b.Low > 0 && b.Close > 0) || b.Low > b.High {
			return 0, fmt.Errorf("%w: bar %d (%s) is not a valid OHLC quote", ErrInvalidArgument, i, b.Date.Format(time.DateOnly))
		}
	}

	var variance float64
	switch e {
	case CloseToClose:
		returns := make([]float64, len(bars)-1)
		for i := 1; i < len(bars); i++ {
			returns[i-1] = math.Log(bars[i].Close / bars[i-1].Close)
		}
		variance = stat.Variance(returns, nil)
	case Parkinson:
		variance = parkinsonVariance(bars)
	case GarmanKlass:
		variance = garmanKlassVariance(bars)
	case RogersSatchell:
		variance = rogersSatchellVariance(bars)
	case YangZhang:
		variance = yangZhangVariance(bars)
	default:
		return 0, fmt.Errorf("%w: unknown volatility estimator %d", ErrInvalidArgument, int(e))
	}
	return math.Sqrt(math.Max(variance, 0) * tradingDaysPerYear), nil
}

func parkinsonVariance(bars []Bar) float64 {
	sum := 0.0
	for _, b := range bars {
		hl := math.Log(b.High / b.Low)
		sum += hl * hl
	}
	return sum / (4 * float64(len(bars)) * math.Ln2)
}

func garmanKlassVariance(bars []Bar) float64 {
	sum := 0.0
	for _, b := range bars {
		hl := math.Log(b.High / b.Low)
		co := math.Log(b.Close / b.Open)
		sum += 0.5*hl*hl - (2*math.Ln2-1)*co*co
	}
	return sum / float64(len(bars))
}

func rogersSatchellVariance(bars []Bar) float64 {
	sum := 0.0
	for _, b := range bars {
		sum += math.Log(b.High/b.Close)*math.Log(b.High/b.Open) +
			math.Log(b.Low/b.Close)*math.Log(b.Low/b.Open)
	}
	return sum / float64(len(bars))
}

// yangZhangVariance combines overnight, open-to-close and Rogers-Satchell
// variances. The first bar only contributes its open as the base of the
// first overnight return.
func yangZhangVariance(bars []Bar) float64 {
	n := len(bars) - 1
	overnight := make([]float64, n)
	openClose := make([]float64, n)
	for i := 1; i <= n; i++ {
		overnight[i-1] = math.Log(bars[i].Open / bars[i-1].Close)
		openClose[i-1] = math.Log(bars[i].Close / bars[i].Open)
	}
	if n < 2 {
		return rogersSatchellVariance(bars[1:])
	}
	k := 0.34 / (1.34 + float64(n+1)/float64(n-1))
	return stat.Variance(overnight, nil) + k*stat.Variance(openClose, nil) + (1-k)*rogersSatchellVariance(bars[1:])
}
