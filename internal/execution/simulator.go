// Package execution applies strategy decisions against the portfolio
// ledger. It simulates perfect fills at the observed price; costs only
// appear through the optional fee hook.
package execution

import (
	"errors"
	"fmt"

	"solana-auto-trader/internal/domain"
	"solana-auto-trader/internal/portfolio"
)

// ErrInvalidPrice is returned for non-positive prices.
var ErrInvalidPrice = errors.New("invalid price")

// FeeFunc computes the fee in SOL for a fill of the given side and
// notional SOL amount. A nil hook means zero fees.
type FeeFunc func(side domain.TradeSide, solAmount float64) float64

// Recorder receives every produced trade-log entry for durable storage.
// Implementations must not block the caller.
type Recorder interface {
	Record(entry domain.TradeLogEntry)
}

// Simulator executes buys and sells against a single account's ledger.
type Simulator struct {
	ledger   *portfolio.Ledger
	fee      FeeFunc
	recorder Recorder
}

// NewSimulator creates a Simulator. fee and recorder may be nil.
func NewSimulator(ledger *portfolio.Ledger, fee FeeFunc, recorder Recorder) *Simulator {
	return &Simulator{ledger: ledger, fee: fee, recorder: recorder}
}

// Buy spends solAmount at price, crediting solAmount/price tokens.
// The ledger mutation is atomic; on error nothing is applied.
func (s *Simulator) Buy(mint, symbol string, solAmount, price float64, timestampMs int64) (float64, error) {
	if price <= 0 {
		return 0, ErrInvalidPrice
	}

	quantity := solAmount / price
	fee := s.feeFor(domain.SideBuy, solAmount)

	res, err := s.ledger.ApplyBuy(mint, symbol, solAmount, quantity, price, fee, timestampMs)
	if err != nil {
		return 0, fmt.Errorf("buy %s: %w", mint, err)
	}

	s.record(res.Entry)
	return res.Quantity, nil
}

// Sell disposes quantity tokens at price with the given exit reason.
// An oversell is a contract violation surfaced as an error with no
// mutation applied; the owning monitor must abort on it.
func (s *Simulator) Sell(mint string, quantity, price float64, exitReason string, timestampMs int64) (*portfolio.SellResult, error) {
	if price <= 0 {
		return nil, ErrInvalidPrice
	}

	fee := s.feeFor(domain.SideSell, quantity*price)

	res, err := s.ledger.ApplySell(mint, quantity, price, fee, exitReason, timestampMs)
	if err != nil {
		return nil, fmt.Errorf("sell %s: %w", mint, err)
	}

	s.record(res.Entry)
	return res, nil
}

func (s *Simulator) feeFor(side domain.TradeSide, solAmount float64) float64 {
	if s.fee == nil {
		return 0
	}
	return s.fee(side, solAmount)
}

func (s *Simulator) record(entry domain.TradeLogEntry) {
	if s.recorder != nil {
		s.recorder.Record(entry)
	}
}
