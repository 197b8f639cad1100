package models

import (
	"time"
)

// DayCounter converts a pair of dates into a year fraction.
type DayCounter interface {
	YearFraction(start, end time.Time) float64
}

type Actual365Fixed struct{}

func (Actual365Fixed) YearFraction(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24 / 365
}

type Actual360 struct{}

func (Actual360) YearFraction(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24 / 360
}

// YieldTermStructure gives continuously compounded forward rates between
// two times measured from ReferenceDate.
type YieldTermStructure interface {
	ForwardRate(t1, t2 float64) float64
	ReferenceDate() time.Time
	DayCounter() DayCounter
}

// FlatForward is a flat continuously compounded curve driven by a quote.
type FlatForward struct {
	referenceDate time.Time
	rate          Quote
	dayCounter    DayCounter
}

func NewFlatForward(referenceDate time.Time, rate Quote, dc DayCounter) *FlatForward {
	if dc == nil {
		dc = Actual365Fixed{}
	}
	return &FlatForward{referenceDate: referenceDate, rate: rate, dayCounter: dc}
}

func (f *FlatForward) ForwardRate(float64, float64) float64 { return f.rate.Value() }

func (f *FlatForward) ReferenceDate() time.Time { return f.referenceDate }

func (f *FlatForward) DayCounter() DayCounter { return f.dayCounter }

// Rate returns the quote backing the curve.
func (f *FlatForward) Rate() Quote { return f.rate }

// Discount returns exp(-r*t).
func (f *FlatForward) Discount(t float64) float64 {
	return discount(f.rate.Value(), t)
}
