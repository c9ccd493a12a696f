// Package strategy implements the per-position exit state machine.
// One Engine instance owns the exit plan of exactly one open position;
// it is driven by that position's monitor goroutine and is not safe for
// concurrent use.
package strategy

import (
	"solana-auto-trader/internal/domain"
)

// State of the exit plan.
//
//	Armed    — initial; breakeven not yet set
//	Trailing — after the first take-profit tier fired
//	Closed   — terminal; full exit emitted
type State string

const (
	StateArmed    State = "ARMED"
	StateTrailing State = "TRAILING"
	StateClosed   State = "CLOSED"
)

// Action is one decision emitted for a price tick. An empty action
// slice from OnTick means HOLD.
type Action struct {
	Side domain.TradeSide

	// SELL fields. AllRemaining takes precedence over SellFraction;
	// SellFraction applies to the position's ORIGINAL quantity.
	SellFraction float64
	AllRemaining bool
	Reason       string

	// BUY (scale-in) fields: fraction of current cash to add.
	RiskFraction float64
}

// ScaleIn configures the optional one-shot scale-in extension.
type ScaleIn struct {
	Enabled     bool
	TriggerGain float64 // profit fraction above entry that arms the buy
	RiskPct     float64 // fraction of current cash for the extra buy
}

// Config holds the exit-policy parameters for one position.
type Config struct {
	Tiers           []domain.TakeProfitTier // ascending target order
	InitialStopPct  float64                 // initial stop distance below entry
	TrailingStopPct float64                 // trail distance below the peak
	ScaleIn         ScaleIn
}

// Engine evaluates HOLD/SELL decisions for each incoming tick against
// the position's exit plan.
type Engine struct {
	cfg        Config
	entryPrice float64

	state       State
	stopLoss    float64
	highestSeen float64
	nextTier    int // index of the lowest untriggered tier
	scaleInDone bool
}

// NewEngine creates an engine for a position entered at entryPrice.
// The initial stop-loss sits InitialStopPct below entry.
func NewEngine(entryPrice float64, cfg Config) *Engine {
	return &Engine{
		cfg:         cfg,
		entryPrice:  entryPrice,
		state:       StateArmed,
		stopLoss:    entryPrice * (1 - cfg.InitialStopPct),
		highestSeen: entryPrice,
	}
}

// OnTick evaluates one price observation and returns the actions to
// execute, in order. The stop-loss check runs before take-profit, so a
// tick satisfying both is a stop exit. A gap tick crossing several tier
// targets fires the lower tiers before the higher ones. Returns nil
// once the engine is Closed.
func (e *Engine) OnTick(price float64) []Action {
	if e.state == StateClosed {
		return nil
	}

	// Rule 1: stop-loss before everything else.
	if price <= e.stopLoss {
		reason := domain.ExitReasonStopLoss
		if e.state == StateTrailing {
			reason = domain.ExitReasonTrailingStop
		}
		e.state = StateClosed
		return []Action{{Side: domain.SideSell, AllRemaining: true, Reason: reason}}
	}

	// Rule 2: take-profit tiers, lowest first.
	var actions []Action
	for e.nextTier < len(e.cfg.Tiers) {
		tier := e.cfg.Tiers[e.nextTier]
		if price < e.entryPrice*(1+tier.TargetGain) {
			break
		}

		if e.nextTier == 0 {
			// First tier promotes the stop to breakeven.
			e.stopLoss = e.entryPrice
			e.state = StateTrailing
		}
		e.nextTier++

		if e.nextTier == len(e.cfg.Tiers) {
			// Last tier exits the full remainder.
			e.state = StateClosed
			actions = append(actions, Action{
				Side:         domain.SideSell,
				AllRemaining: true,
				Reason:       domain.ExitReasonTakeProfit,
			})
			return actions
		}

		actions = append(actions, Action{
			Side:         domain.SideSell,
			SellFraction: tier.SellFraction,
			Reason:       domain.ExitReasonTakeProfit,
		})
	}
	if len(actions) > 0 {
		return actions
	}

	// Rule 2.5: one-shot scale-in, only on otherwise quiet ticks so it
	// cannot interleave with a partial exit at the same price.
	if e.cfg.ScaleIn.Enabled && !e.scaleInDone &&
		price >= e.entryPrice*(1+e.cfg.ScaleIn.TriggerGain) {
		e.scaleInDone = true
		return []Action{{Side: domain.SideBuy, RiskFraction: e.cfg.ScaleIn.RiskPct}}
	}

	// Rule 3: trail the stop under new highs. The stop never moves down.
	if e.state == StateTrailing && price > e.highestSeen {
		e.highestSeen = price
		if trailed := e.highestSeen * (1 - e.cfg.TrailingStopPct); trailed > e.stopLoss {
			e.stopLoss = trailed
		}
	}

	return nil
}

// State returns the current state.
func (e *Engine) State() State {
	return e.state
}

// StopLoss returns the current stop-loss price.
func (e *Engine) StopLoss() float64 {
	return e.stopLoss
}

// Snapshot builds the observer view of the current exit plan.
func (e *Engine) Snapshot() domain.ExitPlanSnapshot {
	remaining := make([]domain.TakeProfitTier, 0, len(e.cfg.Tiers)-e.nextTier)
	remaining = append(remaining, e.cfg.Tiers[e.nextTier:]...)

	return domain.ExitPlanSnapshot{
		EntryPrice:     e.entryPrice,
		StopLossPrice:  e.stopLoss,
		RemainingTiers: remaining,
		HighestPrice:   e.highestSeen,
		Breakeven:      e.state != StateArmed,
	}
}
