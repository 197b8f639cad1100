// Package marketdata reads daily price history in the brokerage JSON layout
//
//	{"history": {"day": [{"date": "2024-01-02", "open": 1, "high": 1, "low": 1, "close": 1, "volume": 0}]}}
//
// and turns it into bars for the realized volatility estimators.
package marketdata

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/bcdannyboy/fdm/models"
	"github.com/xhhuango/json"
)

var ErrInvalidHistory = errors.New("marketdata: invalid history")

type QuoteHistory struct {
	History struct {
		Day []struct {
			Date   string  `json:"date"`
			Open   float64 `json:"open"`
			High   float64 `json:"high"`
			Low    float64 `json:"low"`
			Close  float64 `json:"close"`
			Volume int     `json:"volume"`
		} `json:"day"`
	} `json:"history"`
}

// Bars converts the history into bars sorted by date.
func (h *QuoteHistory) Bars() ([]models.Bar, error) {
	bars := make([]models.Bar, 0, len(h.History.Day))
	for _, day := range h.History.Day {
		d, err := time.Parse("2006-01-02", day.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: date %q", ErrInvalidHistory, day.Date)
		}
		bars = append(bars, models.Bar{
			Date:  d,
			Open:  day.Open,
			High:  day.High,
			Low:   day.Low,
			Close: day.Close,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

func ReadHistory(r io.Reader) ([]models.Bar, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var h QuoteHistory
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHistory, err)
	}
	return h.Bars()
}

func LoadHistory(path string) ([]models.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bars, err := ReadHistory(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return bars, nil
}
