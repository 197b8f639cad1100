// Package instruments holds the contract side of an option: payoffs and
// exercise schedules.
package instruments

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrInvalidArgument = errors.New("instruments: invalid argument")

type OptionType int

const (
	Call OptionType = iota
	Put
)

func (t OptionType) String() string {
	switch t {
	case Call:
		return "call"
	case Put:
		return "put"
	}
	return fmt.Sprintf("OptionType(%d)", int(t))
}

func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return Call, nil
	case "put", "p":
		return Put, nil
	}
	return 0, fmt.Errorf("%w: unknown option type %q", ErrInvalidArgument, s)
}

// Payoff maps the underlying price at exercise to a cash amount.
type Payoff interface {
	Value(price float64) float64
}

// StrikedPayoff is a payoff with a strike and a call/put side.
type StrikedPayoff interface {
	Payoff
	Strike() float64
	Type() OptionType
}

type PlainVanillaPayoff struct {
	optionType OptionType
	strike     float64
}

func NewPlainVanillaPayoff(t OptionType, strike float64) (*PlainVanillaPayoff, error) {
	if t != Call && t != Put {
		return nil, fmt.Errorf("%w: unknown option type %d", ErrInvalidArgument, int(t))
	}
	if !(strike >= 0) {
		return nil, fmt.Errorf("%w: strike %v", ErrInvalidArgument, strike)
	}
	return &PlainVanillaPayoff{optionType: t, strike: strike}, nil
}

func (p *PlainVanillaPayoff) Strike() float64  { return p.strike }
func (p *PlainVanillaPayoff) Type() OptionType { return p.optionType }

func (p *PlainVanillaPayoff) Value(price float64) float64 {
	if p.optionType == Call {
		return math.Max(price-p.strike, 0)
	}
	return math.Max(p.strike-price, 0)
}

// GapPayoff pays price-SecondStrike (call) or SecondStrike-price (put) once
// the price is at or beyond Strike.
type GapPayoff struct {
	optionType   OptionType
	strike       float64
	secondStrike float64
}

func NewGapPayoff(t OptionType, strike, secondStrike float64) (*GapPayoff, error) {
	if t != Call && t != Put {
		return nil, fmt.Errorf("%w: unknown option type %d", ErrInvalidArgument, int(t))
	}
	if !(strike >= 0) || !(secondStrike >= 0) {
		return nil, fmt.Errorf("%w: strikes %v, %v", ErrInvalidArgument, strike, secondStrike)
	}
	return &GapPayoff{optionType: t, strike: strike, secondStrike: secondStrike}, nil
}

func (p *GapPayoff) Strike() float64       { return p.strike }
func (p *GapPayoff) SecondStrike() float64 { return p.secondStrike }
func (p *GapPayoff) Type() OptionType      { return p.optionType }

func (p *GapPayoff) Value(price float64) float64 {
	if p.optionType == Call {
		if price >= p.strike {
			return price - p.secondStrike
		}
		return 0
	}
	if price <= p.strike {
		return p.secondStrike - price
	}
	return 0
}
