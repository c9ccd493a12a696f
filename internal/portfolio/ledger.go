// Package portfolio implements the authoritative per-account ledger.
// The ledger is the only state shared across position monitors: every
// mutation goes through one of its atomic operations, and callers never
// see its internal maps.
package portfolio

import (
	"errors"
	"sync"

	"solana-auto-trader/internal/domain"
	"solana-auto-trader/internal/idhash"
)

// Ledger mutation errors. ErrInsufficientQuantity signals a programming
// contract violation (a monitor asked to sell more than it holds) and
// must abort the owning monitor, not be retried.
var (
	ErrInsufficientCash     = errors.New("insufficient cash balance")
	ErrInsufficientQuantity = errors.New("insufficient position quantity")
	ErrInvalidAmount        = errors.New("amount must be positive")
)

// Holding is an open-position aggregate: quantity held and its weighted
// average cost basis in SOL per token.
type Holding struct {
	Quantity  float64
	CostBasis float64
}

// Ledger tracks cash, open positions, and the append-only trade log for
// one account. All methods are safe for concurrent use.
type Ledger struct {
	mu             sync.RWMutex
	cash           float64
	initialCapital float64
	holdings       map[string]*Holding // mint -> holding
	symbols        map[string]string   // mint -> symbol, for log entries
	tradeLog       []domain.TradeLogEntry
	realizedPnL    float64
}

// NewLedger creates a ledger funded with the given SOL capital.
func NewLedger(initialCapital float64) *Ledger {
	return &Ledger{
		cash:           initialCapital,
		initialCapital: initialCapital,
		holdings:       make(map[string]*Holding),
		symbols:        make(map[string]string),
	}
}

// BuyResult reports the outcome of an applied buy.
type BuyResult struct {
	Entry    domain.TradeLogEntry
	Quantity float64
}

// SellResult reports the outcome of an applied sell.
type SellResult struct {
	Entry       domain.TradeLogEntry
	SolReceived float64
	RealizedPnL float64
	Closed      bool // true when the position is fully exited
}

// ApplyBuy atomically debits solSpent (plus fee) from cash, credits the
// position, and appends a trade-log entry. No state changes on error.
func (l *Ledger) ApplyBuy(mint, symbol string, solSpent, quantity, price, fee float64, timestampMs int64) (*BuyResult, error) {
	if solSpent <= 0 || quantity <= 0 || price <= 0 {
		return nil, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	total := solSpent + fee
	if l.cash < total {
		return nil, ErrInsufficientCash
	}

	l.cash -= total

	h, ok := l.holdings[mint]
	if !ok {
		h = &Holding{}
		l.holdings[mint] = h
	}
	// Weighted cost basis over the combined quantity.
	newQty := h.Quantity + quantity
	h.CostBasis = (h.CostBasis*h.Quantity + solSpent) / newQty
	h.Quantity = newQty
	l.symbols[mint] = symbol

	entry := domain.TradeLogEntry{
		FillID:      idhash.ComputeFillID(mint, string(domain.SideBuy), timestampMs, quantity),
		Mint:        mint,
		Symbol:      symbol,
		Side:        domain.SideBuy,
		Quantity:    quantity,
		Price:       price,
		SolDelta:    -total,
		Fee:         fee,
		TimestampMs: timestampMs,
	}
	l.tradeLog = append(l.tradeLog, entry)

	return &BuyResult{Entry: entry, Quantity: quantity}, nil
}

// ApplySell atomically credits cash (minus fee), debits the position,
// computes realized P&L against the weighted cost basis, and appends a
// trade-log entry. No state changes on error.
func (l *Ledger) ApplySell(mint string, quantity, price, fee float64, exitReason string, timestampMs int64) (*SellResult, error) {
	if quantity <= 0 || price <= 0 {
		return nil, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.holdings[mint]
	if !ok || h.Quantity < quantity-quantityEpsilon {
		return nil, ErrInsufficientQuantity
	}
	if quantity > h.Quantity {
		quantity = h.Quantity
	}

	solReceived := quantity*price - fee
	if solReceived < 0 {
		// A fee above the gross proceeds would debit cash on a sell.
		return nil, ErrInsufficientCash
	}
	pnl := (price - h.CostBasis) * quantity

	l.cash += solReceived
	l.realizedPnL += pnl
	h.Quantity -= quantity

	closed := h.Quantity < quantityEpsilon
	if closed {
		delete(l.holdings, mint)
	}

	entry := domain.TradeLogEntry{
		FillID:      idhash.ComputeFillID(mint, string(domain.SideSell), timestampMs, quantity),
		Mint:        mint,
		Symbol:      l.symbols[mint],
		Side:        domain.SideSell,
		Quantity:    quantity,
		Price:       price,
		SolDelta:    solReceived,
		Fee:         fee,
		TimestampMs: timestampMs,
		RealizedPnL: pnl,
		ExitReason:  exitReason,
	}
	l.tradeLog = append(l.tradeLog, entry)

	return &SellResult{
		Entry:       entry,
		SolReceived: solReceived,
		RealizedPnL: pnl,
		Closed:      closed,
	}, nil
}

// quantityEpsilon absorbs float residue after the last partial sell so a
// fully-exited position does not linger with dust.
const quantityEpsilon = 1e-9

// CashBalance returns the current SOL balance.
func (l *Ledger) CashBalance() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// RealizedPnL returns the running sum of realized P&L over all sells.
func (l *Ledger) RealizedPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.realizedPnL
}

// Position returns a copy of the holding for mint, or false if none.
func (l *Ledger) Position(mint string) (Holding, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h, ok := l.holdings[mint]
	if !ok {
		return Holding{}, false
	}
	return *h, true
}

// UnrealizedPnL computes Sum(qty * (lastPrice - costBasis)) over open
// positions, using the supplied last-known prices. Positions without a
// price contribute zero.
func (l *Ledger) UnrealizedPnL(prices map[string]float64) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var pnl float64
	for mint, h := range l.holdings {
		if price, ok := prices[mint]; ok {
			pnl += h.Quantity * (price - h.CostBasis)
		}
	}
	return pnl
}

// TotalValue computes cash plus the market value of all open positions
// at the supplied last-known prices.
func (l *Ledger) TotalValue(prices map[string]float64) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := l.cash
	for mint, h := range l.holdings {
		total += h.Quantity * prices[mint]
	}
	return total
}

// TradeLog returns a copy of all trade-log entries in append order.
func (l *Ledger) TradeLog() []domain.TradeLogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.TradeLogEntry, len(l.tradeLog))
	copy(out, l.tradeLog)
	return out
}

// Snapshot builds an immutable observer view of the ledger at the
// supplied last-known prices.
func (l *Ledger) Snapshot(prices map[string]float64) Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := Snapshot{
		SolBalance:  l.cash,
		RealizedPnL: l.realizedPnL,
		Positions:   make(map[string]domain.PositionSnapshot, len(l.holdings)),
	}
	total := l.cash
	for mint, h := range l.holdings {
		snap.Positions[mint] = domain.PositionSnapshot{
			Mint:      mint,
			Symbol:    l.symbols[mint],
			Quantity:  h.Quantity,
			CostBasis: h.CostBasis,
		}
		total += h.Quantity * prices[mint]
	}
	snap.TotalValue = total
	snap.OverallPnL = total - l.initialCapital
	return snap
}

// Snapshot is an immutable ledger view published to observers.
type Snapshot struct {
	SolBalance  float64                            `json:"sol_balance"`
	TotalValue  float64                            `json:"total_value"`
	RealizedPnL float64                            `json:"realized_pnl"`
	OverallPnL  float64                            `json:"overall_pnl"`
	Positions   map[string]domain.PositionSnapshot `json:"positions"`
}
