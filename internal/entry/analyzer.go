package entry

import (
	"context"
	"fmt"
	"log"

	"solana-auto-trader/internal/marketdata"
)

// Analysis is the outcome of evaluating a candidate's price history.
// When Signal is false the candidate finishes without an entry.
type Analysis struct {
	Signal      bool
	Price       float64 // latest close, the prospective entry price
	TimestampMs int64
}

// AnalyzerOptions configures the entry-analysis stage.
type AnalyzerOptions struct {
	Provider     marketdata.Provider
	Rule         Rule
	HistoryLimit int
	Logger       *log.Logger
}

// Analyzer fetches a candle window and evaluates the configured entry
// rule over its closes.
type Analyzer struct {
	provider marketdata.Provider
	rule     Rule
	limit    int
	logger   *log.Logger
}

// NewAnalyzer creates an entry analyzer.
func NewAnalyzer(opts AnalyzerOptions) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	limit := opts.HistoryLimit
	if limit == 0 {
		limit = 200
	}
	return &Analyzer{
		provider: opts.Provider,
		rule:     opts.Rule,
		limit:    limit,
		logger:   logger,
	}
}

// Analyze evaluates the entry rule over the mint's recent closes. A
// history fetch failure is an error; a quiet rule is a non-signal
// result, not an error.
func (a *Analyzer) Analyze(ctx context.Context, mint string) (Analysis, error) {
	candles, err := a.provider.History(ctx, mint, a.limit)
	if err != nil {
		return Analysis{}, fmt.Errorf("history for %s: %w", mint, err)
	}
	if len(candles) == 0 {
		return Analysis{}, fmt.Errorf("history for %s: %w", mint, marketdata.ErrNoData)
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	signal, err := a.rule.Evaluate(closes)
	if err != nil {
		return Analysis{}, err
	}

	latest := candles[len(candles)-1]
	if signal {
		a.logger.Printf("[ENTRY] %s rule=%s signaled at price %.8f", mint, a.rule.Kind, latest.Close)
	}
	return Analysis{
		Signal:      signal,
		Price:       latest.Close,
		TimestampMs: latest.TimestampMs,
	}, nil
}
