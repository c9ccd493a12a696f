// Package orchestrator owns the trade lifecycle: it consumes screened
// candidates, opens positions under the concurrency cap, and runs one
// monitor goroutine per open position until its exit plan closes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"solana-auto-trader/internal/broadcast"
	"solana-auto-trader/internal/domain"
	"solana-auto-trader/internal/entry"
	"solana-auto-trader/internal/execution"
	"solana-auto-trader/internal/marketdata"
	"solana-auto-trader/internal/observability"
	"solana-auto-trader/internal/portfolio"
	"solana-auto-trader/internal/screening"
	"solana-auto-trader/internal/signal"
	"solana-auto-trader/internal/storage"
	"solana-auto-trader/internal/strategy"
)

// ErrShutdown is returned by Run on a clean context cancellation.
var ErrShutdown = errors.New("orchestrator shut down")

// Options wires the orchestrator's collaborators.
type Options struct {
	Ledger   *portfolio.Ledger
	Executor *execution.Simulator
	Provider marketdata.Provider
	Hub      *broadcast.Hub
	Queue    *signal.Queue
	Source   signal.Source
	Screener *screening.Screener
	Analyzer *entry.Analyzer

	StrategyConfig   strategy.Config
	RiskPerTrade     float64 // fraction of current cash per position
	MaxOpenPositions int
	MinTradeSOL      float64

	TickArchive storage.TickArchiveStore // optional, best-effort
	Metrics     *observability.Metrics   // optional
	Logger      *log.Logger
}

// monitor is the per-position bookkeeping owned by the registry.
type monitor struct {
	position domain.Position
	engine   *strategy.Engine
	cancel   context.CancelFunc
	pnl      float64 // realized P&L accumulated over this position's sells
}

// Orchestrator coordinates the pipeline stages and the position
// registry. The registry is serialized: duplicate opens and cap
// overruns are impossible by construction.
type Orchestrator struct {
	opts   Options
	logger *log.Logger

	mu         sync.Mutex
	monitors   map[string]*monitor
	summaries  map[string]*domain.TradeSummary
	order      []string // mints in first-seen order, for stable summaries
	lastPrices map[string]float64

	wg sync.WaitGroup
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		opts:       opts,
		logger:     logger,
		monitors:   make(map[string]*monitor),
		summaries:  make(map[string]*domain.TradeSummary),
		lastPrices: make(map[string]float64),
	}
}

// Run drives the pipeline until ctx is cancelled: signal intake feeds
// the signal queue, the screener forwards passing candidates to the
// trade queue, and the entry-analysis loop turns them into positions.
// Open monitors are cancelled on shutdown; positions are left as they
// are, never force-liquidated.
func (o *Orchestrator) Run(ctx context.Context) error {
	sigCh, err := o.opts.Source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe signal source: %w", err)
	}

	// Intake: validate and enqueue without ever blocking the source.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.intakeLoop(ctx, sigCh)
	}()

	// Screening: signal queue in, trade queue out.
	tradeQueue := make(chan *domain.Candidate, 64)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(tradeQueue)
		o.screenLoop(ctx, tradeQueue)
	}()

	// Entry analysis runs on the calling goroutine.
	for cand := range tradeQueue {
		o.analyzeCandidate(ctx, cand)
	}
	o.wg.Wait()
	return ErrShutdown
}

// Wait blocks until all monitors and the intake loop have stopped.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// intakeLoop validates incoming signals and feeds the queue.
func (o *Orchestrator) intakeLoop(ctx context.Context, sigCh <-chan *domain.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sigCh:
			if !ok {
				return
			}
			if m := o.opts.Metrics; m != nil {
				m.SignalsReceived.Inc()
			}
			if err := signal.Validate(sig); err != nil {
				o.logger.Printf("[ORCH] drop invalid signal: %v", err)
				if m := o.opts.Metrics; m != nil {
					m.SignalsDropped.WithLabelValues("invalid").Inc()
				}
				continue
			}
			if o.held(sig.Mint) {
				o.logger.Printf("[ORCH] drop signal for held token %s", sig.Mint)
				if m := o.opts.Metrics; m != nil {
					m.SignalsDropped.WithLabelValues("already_held").Inc()
				}
				continue
			}
			if !o.opts.Queue.Enqueue(sig) {
				if m := o.opts.Metrics; m != nil {
					m.SignalsDropped.WithLabelValues("duplicate_queued").Inc()
				}
				continue
			}
			o.setStatus(sig.Mint, sig.Symbol, domain.StatusPending, 0)
		}
	}
}

// screenLoop consumes the signal queue and forwards passing candidates
// to the trade queue.
func (o *Orchestrator) screenLoop(ctx context.Context, tradeQueue chan<- *domain.Candidate) {
	for {
		sig, err := o.opts.Queue.Dequeue(ctx)
		if err != nil {
			return
		}
		o.setStatus(sig.Mint, sig.Symbol, domain.StatusScreening, 0)

		start := time.Now()
		res := o.opts.Screener.Screen(ctx, sig)
		if m := o.opts.Metrics; m != nil {
			m.CollaboratorLatency.WithLabelValues("sentiment").Observe(time.Since(start).Seconds())
			outcome := "pass"
			if !res.Passed {
				outcome = "fail"
			}
			m.CandidatesScreened.WithLabelValues(outcome).Inc()
		}
		if !res.Passed {
			o.setStatus(sig.Mint, sig.Symbol, domain.StatusFailed, 0)
			o.publishSummary()
			continue
		}

		select {
		case tradeQueue <- res.Candidate:
		case <-ctx.Done():
			return
		}
	}
}

// analyzeCandidate runs entry analysis on one screened candidate and
// attempts to open a position on an entry signal.
func (o *Orchestrator) analyzeCandidate(ctx context.Context, cand *domain.Candidate) {
	sig := cand.Signal
	o.setStatus(sig.Mint, sig.Symbol, domain.StatusMonitoring, 0)

	start := time.Now()
	analysis, err := o.opts.Analyzer.Analyze(ctx, sig.Mint)
	if m := o.opts.Metrics; m != nil {
		m.CollaboratorLatency.WithLabelValues("marketdata").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		o.logger.Printf("[ORCH] entry analysis for %s failed: %v", sig.Mint, err)
		if m := o.opts.Metrics; m != nil {
			m.EntriesAnalyzed.WithLabelValues("error").Inc()
			m.CollaboratorErrors.WithLabelValues("marketdata").Inc()
		}
		o.setStatus(sig.Mint, sig.Symbol, domain.StatusFailed, 0)
		o.publishSummary()
		return
	}
	if !analysis.Signal {
		if m := o.opts.Metrics; m != nil {
			m.EntriesAnalyzed.WithLabelValues("no_entry").Inc()
		}
		o.setStatus(sig.Mint, sig.Symbol, domain.StatusFinished, 0)
		o.publishSummary()
		return
	}
	if m := o.opts.Metrics; m != nil {
		m.EntriesAnalyzed.WithLabelValues("entry").Inc()
	}

	opened, err := o.OpenPosition(ctx, sig.Mint, sig.Symbol, analysis.Price, analysis.TimestampMs)
	if err != nil {
		o.logger.Printf("[ORCH] open %s failed: %v", sig.Mint, err)
		o.setStatus(sig.Mint, sig.Symbol, domain.StatusFailed, 0)
	} else if !opened {
		// Cap or duplicate: an explicit skip, not an error.
		o.setStatus(sig.Mint, sig.Symbol, domain.StatusFinished, 0)
	}
	o.publishSummary()
}

// OpenPosition sizes and opens a position for the token, spawning its
// monitor goroutine. Returns (false, nil) as an explicit skip when the
// concurrency cap is reached or the token is already held.
func (o *Orchestrator) OpenPosition(ctx context.Context, mint, symbol string, price float64, timestampMs int64) (bool, error) {
	o.mu.Lock()
	if len(o.monitors) >= o.opts.MaxOpenPositions {
		o.mu.Unlock()
		o.logger.Printf("[ORCH] skip %s: at max open positions (%d)", mint, o.opts.MaxOpenPositions)
		return false, nil
	}
	if _, exists := o.monitors[mint]; exists {
		o.mu.Unlock()
		o.logger.Printf("[ORCH] skip %s: already held", mint)
		return false, nil
	}

	solAmount := o.opts.Ledger.CashBalance() * o.opts.RiskPerTrade
	if solAmount < o.opts.MinTradeSOL {
		o.mu.Unlock()
		o.logger.Printf("[ORCH] skip %s: size %.6f below minimum", mint, solAmount)
		return false, nil
	}

	quantity, err := o.opts.Executor.Buy(mint, symbol, solAmount, price, timestampMs)
	if err != nil {
		o.mu.Unlock()
		return false, err
	}

	pos := domain.Position{
		Mint:        mint,
		Symbol:      symbol,
		EntryPrice:  price,
		EntryQty:    quantity,
		SolInvested: solAmount,
		EntryTimeMs: timestampMs,
	}
	engine := strategy.NewEngine(price, o.opts.StrategyConfig)

	monCtx, cancel := context.WithCancel(ctx)
	mon := &monitor{position: pos, engine: engine, cancel: cancel}
	o.monitors[mint] = mon
	o.lastPrices[mint] = price
	o.mu.Unlock()

	o.setStatus(mint, symbol, domain.StatusActive, 0)
	o.logger.Printf("[ORCH] opened %s: qty %.6f at %.8f (%.4f SOL)", mint, quantity, price, solAmount)
	if m := o.opts.Metrics; m != nil {
		m.PositionsOpened.Inc()
		m.OpenPositions.Set(float64(o.ActivePositions()))
	}

	o.opts.Hub.PositionOpened(pos, engine.Snapshot())

	o.wg.Add(1)
	go o.runMonitor(monCtx, mon)
	return true, nil
}

// ClosePosition removes the position from the registry after its
// terminal fill and cancels its monitor.
func (o *Orchestrator) ClosePosition(mint string, exitReason string) {
	o.mu.Lock()
	mon, ok := o.monitors[mint]
	if ok {
		delete(o.monitors, mint)
	}
	o.mu.Unlock()
	if !ok {
		return
	}

	mon.cancel()
	o.opts.Hub.PositionClosed(mint)
	o.setStatus(mint, mon.position.Symbol, domain.StatusFinished, mon.pnl)
	if m := o.opts.Metrics; m != nil {
		if exitReason == "" {
			exitReason = "aborted"
		}
		m.PositionsClosed.WithLabelValues(exitReason).Inc()
		m.OpenPositions.Set(float64(o.ActivePositions()))
	}
	o.publishSummary()
}

// ActivePositions reports the number of open positions.
func (o *Orchestrator) ActivePositions() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.monitors)
}

// held reports whether the token has an open position.
func (o *Orchestrator) held(mint string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.monitors[mint]
	return ok
}

// runMonitor drives one position from its tick stream until the exit
// plan closes or the stream ends.
func (o *Orchestrator) runMonitor(ctx context.Context, mon *monitor) {
	defer o.wg.Done()

	mint := mon.position.Mint
	ticks, err := o.opts.Provider.Stream(ctx, mint)
	if err != nil {
		o.logger.Printf("[MONITOR] %s: stream failed: %v", mint, err)
		o.abortMonitor(mon)
		return
	}

	var archive []*domain.Tick
	defer o.flushArchive(&archive)

	for tick := range ticks {
		if o.opts.TickArchive != nil {
			t := tick
			archive = append(archive, &t)
			if len(archive) >= 64 {
				o.flushArchive(&archive)
			}
		}

		closed, err := o.handleTick(mon, tick)
		if err != nil {
			o.logger.Printf("[MONITOR] %s: aborting: %v", mint, err)
			o.abortMonitor(mon)
			return
		}
		if closed {
			return
		}
	}

	// Stream ended without a terminal exit (shutdown or feed gone).
	// The position stays on the books.
	o.logger.Printf("[MONITOR] %s: tick stream ended, position left open", mint)
}

// handleTick runs the strategy engine on one tick and executes every
// emitted action. Returns true when the position reached a terminal
// exit.
func (o *Orchestrator) handleTick(mon *monitor, tick domain.Tick) (bool, error) {
	mint := mon.position.Mint

	o.mu.Lock()
	o.lastPrices[mint] = tick.Price
	prices := o.pricesLocked()
	o.mu.Unlock()

	if m := o.opts.Metrics; m != nil {
		m.TicksProcessed.Inc()
	}

	actions := mon.engine.OnTick(tick.Price)
	if len(actions) == 0 {
		snap := o.opts.Ledger.Snapshot(prices)
		plan := mon.engine.Snapshot()
		o.opts.Hub.Tick(broadcast.TickPayload{
			Mint:     mint,
			Price:    tick.Price,
			Ledger:   &snap,
			ExitPlan: &plan,
		})
		return false, nil
	}

	var lastReason string
	for _, action := range actions {
		fill, err := o.execute(mon, action, tick)
		if err != nil {
			return false, err
		}
		lastReason = action.Reason

		snap := o.opts.Ledger.Snapshot(prices)
		plan := mon.engine.Snapshot()
		o.opts.Hub.Tick(broadcast.TickPayload{
			Mint:     mint,
			Price:    tick.Price,
			Trade:    fill,
			Ledger:   &snap,
			ExitPlan: &plan,
		})
	}

	o.updateLedgerGauges(prices)

	if mon.engine.State() == strategy.StateClosed {
		o.ClosePosition(mint, lastReason)
		return true, nil
	}
	o.publishSummary()
	return false, nil
}

// execute applies one strategy action through the simulator.
func (o *Orchestrator) execute(mon *monitor, action strategy.Action, tick domain.Tick) (*domain.TradeLogEntry, error) {
	mint := mon.position.Mint

	if action.Side == domain.SideBuy {
		solAmount := o.opts.Ledger.CashBalance() * action.RiskFraction
		if solAmount < o.opts.MinTradeSOL {
			o.logger.Printf("[MONITOR] %s: scale-in below minimum size, skipped", mint)
			return nil, nil
		}
		qty, err := o.opts.Executor.Buy(mint, mon.position.Symbol, solAmount, tick.Price, tick.TimestampMs)
		if err != nil {
			// A failed scale-in is not fatal to the position.
			o.logger.Printf("[MONITOR] %s: scale-in failed: %v", mint, err)
			return nil, nil
		}
		o.logger.Printf("[MONITOR] %s: scaled in %.6f at %.8f", mint, qty, tick.Price)
		// Another monitor may have appended since; find our fill.
		fills := o.opts.Ledger.TradeLog()
		for i := len(fills) - 1; i >= 0; i-- {
			f := fills[i]
			if f.Mint == mint && f.Side == domain.SideBuy && f.TimestampMs == tick.TimestampMs {
				return &f, nil
			}
		}
		return nil, nil
	}

	var quantity float64
	if action.AllRemaining {
		holding, ok := o.opts.Ledger.Position(mint)
		if !ok {
			return nil, fmt.Errorf("terminal sell with no holding for %s", mint)
		}
		quantity = holding.Quantity
	} else {
		// Tier fractions apply to the original purchase quantity.
		quantity = mon.position.EntryQty * action.SellFraction
	}

	res, err := o.opts.Executor.Sell(mint, quantity, tick.Price, action.Reason, tick.TimestampMs)
	if err != nil {
		return nil, err
	}
	mon.pnl += res.RealizedPnL
	o.logger.Printf("[MONITOR] %s: sold %.6f at %.8f reason=%s pnl=%.6f",
		mint, res.Entry.Quantity, tick.Price, action.Reason, res.RealizedPnL)
	return &res.Entry, nil
}

// abortMonitor handles a contract violation or stream failure: the
// position is marked Failed and removed without further selling.
func (o *Orchestrator) abortMonitor(mon *monitor) {
	mint := mon.position.Mint

	o.mu.Lock()
	delete(o.monitors, mint)
	o.mu.Unlock()

	mon.cancel()
	o.opts.Hub.PositionClosed(mint)
	o.setStatus(mint, mon.position.Symbol, domain.StatusFailed, mon.pnl)
	if m := o.opts.Metrics; m != nil {
		m.PositionsClosed.WithLabelValues("aborted").Inc()
		m.OpenPositions.Set(float64(o.ActivePositions()))
	}
	o.publishSummary()
}

// flushArchive writes buffered ticks to the archive store best-effort.
func (o *Orchestrator) flushArchive(buf *[]*domain.Tick) {
	if o.opts.TickArchive == nil || len(*buf) == 0 {
		return
	}
	batch := *buf
	*buf = nil

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.opts.TickArchive.InsertBulk(ctx, batch); err != nil {
		o.logger.Printf("[ORCH] tick archive write failed: %v", err)
	}
}

// setStatus records the lifecycle status of a token for SUMMARY rows.
func (o *Orchestrator) setStatus(mint, symbol string, status domain.TradeStatus, pnl float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	row, ok := o.summaries[mint]
	if !ok {
		row = &domain.TradeSummary{Mint: mint, Symbol: symbol}
		o.summaries[mint] = row
		o.order = append(o.order, mint)
	}
	if symbol != "" {
		row.Symbol = symbol
	}
	row.Status = status
	if status == domain.StatusFinished || status == domain.StatusFailed {
		row.PnL = pnl
	}
}

// publishSummary broadcasts the current session summary.
func (o *Orchestrator) publishSummary() {
	o.mu.Lock()
	rows := make([]domain.TradeSummary, 0, len(o.order))
	for _, mint := range o.order {
		rows = append(rows, *o.summaries[mint])
	}
	prices := o.pricesLocked()
	o.mu.Unlock()

	o.opts.Hub.Summary(broadcast.SummaryPayload{
		Trades: rows,
		Ledger: o.opts.Ledger.Snapshot(prices),
	})
}

// updateLedgerGauges refreshes the account-level metrics.
func (o *Orchestrator) updateLedgerGauges(prices map[string]float64) {
	m := o.opts.Metrics
	if m == nil {
		return
	}
	m.CashBalanceSOL.Set(o.opts.Ledger.CashBalance())
	m.RealizedPnLSOL.Set(o.opts.Ledger.RealizedPnL())
	m.TotalValueSOL.Set(o.opts.Ledger.TotalValue(prices))
}

// pricesLocked copies the last-known prices. Callers hold o.mu.
func (o *Orchestrator) pricesLocked() map[string]float64 {
	prices := make(map[string]float64, len(o.lastPrices))
	for mint, price := range o.lastPrices {
		prices[mint] = price
	}
	return prices
}
