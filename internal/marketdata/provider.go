// Package marketdata abstracts the market-data collaborator: historical
// OHLCV windows for entry analysis and live tick streams for position
// monitors.
package marketdata

import (
	"context"
	"errors"

	"solana-auto-trader/internal/domain"
)

// ErrNoData is returned when a history request yields no candles.
var ErrNoData = errors.New("no market data available")

// Provider supplies historical candles and live ticks for a token.
type Provider interface {
	// History returns up to limit candles ordered by timestamp ASC.
	History(ctx context.Context, mint string, limit int) ([]domain.Candle, error)

	// Stream returns an ordered, unbounded sequence of ticks. The
	// channel closes when the stream ends or ctx is cancelled. Streams
	// are not restartable.
	Stream(ctx context.Context, mint string) (<-chan domain.Tick, error)
}
