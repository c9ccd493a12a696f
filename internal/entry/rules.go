// Package entry evaluates entry rules over historical price windows and
// drives the entry-analysis stage of the pipeline.
package entry

import (
	"errors"
	"fmt"
)

// RuleKind selects the entry rule. Rules are a closed set evaluated by
// pure functions, not an open plugin surface.
type RuleKind string

const (
	RuleCrossover RuleKind = "crossover"
	RuleBreakout  RuleKind = "breakout"
)

// ErrUnknownRule is returned for an unrecognized rule kind.
var ErrUnknownRule = errors.New("unknown entry rule")

// Rule is a tagged variant: the kind plus its parameters.
type Rule struct {
	Kind RuleKind

	// Crossover parameters
	ShortWindow int
	LongWindow  int

	// Breakout parameter
	Lookback int
}

// Evaluate reports whether the rule signals an entry on the latest
// observation of closes. Insufficient history never signals.
func (r Rule) Evaluate(closes []float64) (bool, error) {
	switch r.Kind {
	case RuleCrossover:
		return crossoverSignal(closes, r.ShortWindow, r.LongWindow), nil
	case RuleBreakout:
		return breakoutSignal(closes, r.Lookback), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownRule, r.Kind)
	}
}

// crossoverSignal is true iff the short SMA was below the long SMA on
// the previous observation and is at or above it on the latest one.
// Merely being above does not signal; the cross must happen on this
// boundary.
func crossoverSignal(closes []float64, shortWindow, longWindow int) bool {
	if len(closes) < longWindow+1 {
		return false
	}

	prevShort := sma(closes[:len(closes)-1], shortWindow)
	prevLong := sma(closes[:len(closes)-1], longWindow)
	currShort := sma(closes, shortWindow)
	currLong := sma(closes, longWindow)

	return prevShort < prevLong && currShort >= currLong
}

// breakoutSignal is true iff the latest close exceeds the maximum close
// over the trailing lookback observations, excluding the latest. A
// lookback below 2 has no trailing window to compare against and never
// signals.
func breakoutSignal(closes []float64, lookback int) bool {
	if lookback < 2 || len(closes) < lookback {
		return false
	}

	window := closes[len(closes)-lookback:]
	latest := window[len(window)-1]

	high := window[0]
	for _, c := range window[1 : len(window)-1] {
		if c > high {
			high = c
		}
	}
	return latest > high
}

// sma computes the simple moving average of the last window closes.
func sma(closes []float64, window int) float64 {
	var sum float64
	for _, c := range closes[len(closes)-window:] {
		sum += c
	}
	return sum / float64(window)
}
