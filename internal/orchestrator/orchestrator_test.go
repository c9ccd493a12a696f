package orchestrator

import (
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-auto-trader/internal/broadcast"
	"solana-auto-trader/internal/domain"
	"solana-auto-trader/internal/entry"
	"solana-auto-trader/internal/execution"
	"solana-auto-trader/internal/portfolio"
	"solana-auto-trader/internal/screening"
	"solana-auto-trader/internal/sentiment"
	"solana-auto-trader/internal/signal"
	"solana-auto-trader/internal/strategy"
)

// Well-formed base58 mints for pipeline tests.
const (
	mintWSOL   = "So11111111111111111111111111111111111111112"
	mintSystem = "11111111111111111111111111111111"
	mintUSDC   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// scriptedProvider serves preset candle history and test-fed tick
// streams.
type scriptedProvider struct {
	mu      sync.Mutex
	history map[string][]domain.Candle
	feeds   map[string]chan domain.Tick
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{
		history: make(map[string][]domain.Candle),
		feeds:   make(map[string]chan domain.Tick),
	}
}

func (p *scriptedProvider) setHistory(mint string, candles []domain.Candle) {
	p.mu.Lock()
	p.history[mint] = candles
	p.mu.Unlock()
}

func (p *scriptedProvider) History(ctx context.Context, mint string, limit int) ([]domain.Candle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history[mint], nil
}

func (p *scriptedProvider) Stream(ctx context.Context, mint string) (<-chan domain.Tick, error) {
	p.mu.Lock()
	feed := make(chan domain.Tick, 16)
	p.feeds[mint] = feed
	p.mu.Unlock()

	out := make(chan domain.Tick)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case tick, ok := <-feed:
				if !ok {
					return
				}
				select {
				case out <- tick:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// push delivers one tick once the mint's monitor has subscribed.
func (p *scriptedProvider) push(t *testing.T, mint string, price float64, ts int64) {
	t.Helper()
	var feed chan domain.Tick
	waitFor(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		feed = p.feeds[mint]
		return feed != nil
	})
	feed <- domain.Tick{Mint: mint, Price: price, Volume: 100, TimestampMs: ts}
}

// breakoutHistory signals the breakout rule with latest close 1.0.
func breakoutHistory() []domain.Candle {
	candles := make([]domain.Candle, 10)
	for i := range candles {
		candles[i] = domain.Candle{TimestampMs: int64(i * 1000), Close: 0.9}
	}
	candles[9].Close = 1.0
	return candles
}

type fixedScorer struct {
	score    float64
	mentions int
	err      error
}

func (s fixedScorer) Score(ctx context.Context, mint string) (*sentiment.Sentiment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &sentiment.Sentiment{Score: s.score, Mentions: s.mentions}, nil
}

type chanSource struct {
	ch chan *domain.Signal
}

func (s *chanSource) Subscribe(ctx context.Context) (<-chan *domain.Signal, error) {
	return s.ch, nil
}

type harness struct {
	orch     *Orchestrator
	provider *scriptedProvider
	source   *chanSource
	ledger   *portfolio.Ledger
	hub      *broadcast.Hub
	cancel   context.CancelFunc
	done     chan struct{}
}

func newHarness(t *testing.T, scorer sentiment.Scorer, maxPositions int) *harness {
	t.Helper()

	provider := newScriptedProvider()
	ledger := portfolio.NewLedger(50)
	logger := log.New(testWriter{t}, "", 0)

	h := &harness{
		provider: provider,
		source:   &chanSource{ch: make(chan *domain.Signal, 16)},
		ledger:   ledger,
		hub:      broadcast.NewHub(broadcast.HubOptions{Logger: logger}),
	}
	h.orch = New(Options{
		Ledger:   ledger,
		Executor: execution.NewSimulator(ledger, nil, nil),
		Provider: provider,
		Hub:      h.hub,
		Queue:    signal.NewQueue(),
		Source:   h.source,
		Screener: screening.NewScreener(screening.Options{
			Scorer: scorer, Threshold: 60, Logger: logger,
		}),
		Analyzer: entry.NewAnalyzer(entry.AnalyzerOptions{
			Provider: provider,
			Rule:     entry.Rule{Kind: entry.RuleBreakout, Lookback: 10},
			Logger:   logger,
		}),
		StrategyConfig: strategy.Config{
			Tiers: []domain.TakeProfitTier{
				{TargetGain: 0.30, SellFraction: 0.33},
				{TargetGain: 0.75, SellFraction: 0.33},
			},
			InitialStopPct:  0.15,
			TrailingStopPct: 0.20,
		},
		RiskPerTrade:     0.02,
		MaxOpenPositions: maxPositions,
		MinTradeSOL:      0.0001,
		Logger:           logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})
	go func() {
		h.orch.Run(ctx)
		close(h.done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
			t.Fatal("orchestrator did not shut down")
		}
	})
	return h
}

func (h *harness) send(mint, symbol string) {
	h.source.ch <- &domain.Signal{Mint: mint, Symbol: symbol, ReceivedAt: time.Now().UnixMilli()}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition never satisfied")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestOrchestrator_FullLifecycle(t *testing.T) {
	h := newHarness(t, fixedScorer{score: 80, mentions: 5}, 5)
	h.provider.setHistory(mintWSOL, breakoutHistory())

	h.send(mintWSOL, "WSOL")
	waitFor(t, func() bool { return h.orch.ActivePositions() == 1 })

	// 2% of 50 SOL at price 1.0.
	holding, ok := h.ledger.Position(mintWSOL)
	require.True(t, ok)
	assert.InDelta(t, 1.0, holding.Quantity, 1e-9)

	// First tier: partial sell, stop promoted to breakeven.
	h.provider.push(t, mintWSOL, 1.30, 10_000)
	waitFor(t, func() bool { return len(h.ledger.TradeLog()) == 2 })

	holding, ok = h.ledger.Position(mintWSOL)
	require.True(t, ok)
	assert.InDelta(t, 0.67, holding.Quantity, 1e-9)

	// New high trails the stop to 1.04; the drop to 1.0 exits the rest.
	h.provider.push(t, mintWSOL, 1.30, 11_000)
	h.provider.push(t, mintWSOL, 1.00, 12_000)
	waitFor(t, func() bool { return h.orch.ActivePositions() == 0 })

	fills := h.ledger.TradeLog()
	require.Len(t, fills, 3)
	assert.Equal(t, domain.SideBuy, fills[0].Side)
	assert.Equal(t, domain.ExitReasonTakeProfit, fills[1].ExitReason)
	assert.Equal(t, domain.ExitReasonTrailingStop, fills[2].ExitReason)

	_, ok = h.ledger.Position(mintWSOL)
	assert.False(t, ok)
}

func TestOrchestrator_ScreeningRejectOpensNothing(t *testing.T) {
	h := newHarness(t, fixedScorer{score: 45, mentions: 5}, 5)
	h.provider.setHistory(mintWSOL, breakoutHistory())

	h.send(mintWSOL, "WSOL")

	// The reject surfaces as a Failed summary row; no position opens.
	_, ch := h.hub.Register()
	waitFor(t, func() bool {
		select {
		case msg := <-ch:
			payload, ok := msg.Payload.(broadcast.SummaryPayload)
			if !ok {
				return false
			}
			for _, row := range payload.Trades {
				if row.Mint == mintWSOL && row.Status == domain.StatusFailed {
					return true
				}
			}
		default:
		}
		return false
	})
	assert.Equal(t, 0, h.orch.ActivePositions())
	assert.InDelta(t, 50.0, h.ledger.CashBalance(), 1e-9)
}

func TestOrchestrator_NoEntrySignalFinishesQuietly(t *testing.T) {
	h := newHarness(t, fixedScorer{score: 80, mentions: 5}, 5)

	// Flat closes: the breakout rule stays quiet.
	flat := make([]domain.Candle, 10)
	for i := range flat {
		flat[i] = domain.Candle{TimestampMs: int64(i * 1000), Close: 1.0}
	}
	h.provider.setHistory(mintWSOL, flat)

	h.send(mintWSOL, "WSOL")

	_, ch := h.hub.Register()
	waitFor(t, func() bool {
		select {
		case msg := <-ch:
			payload, ok := msg.Payload.(broadcast.SummaryPayload)
			if !ok {
				return false
			}
			for _, row := range payload.Trades {
				if row.Mint == mintWSOL && row.Status == domain.StatusFinished {
					return true
				}
			}
		default:
		}
		return false
	})
	assert.Equal(t, 0, h.orch.ActivePositions())
}

func TestOrchestrator_MaxPositionsSkips(t *testing.T) {
	h := newHarness(t, fixedScorer{score: 80, mentions: 5}, 1)
	h.provider.setHistory(mintWSOL, breakoutHistory())
	h.provider.setHistory(mintUSDC, breakoutHistory())

	h.send(mintWSOL, "WSOL")
	waitFor(t, func() bool { return h.orch.ActivePositions() == 1 })

	h.send(mintUSDC, "USDC")

	// The second candidate finishes as a skip without a buy.
	waitFor(t, func() bool {
		for _, fill := range h.ledger.TradeLog() {
			if fill.Mint == mintUSDC {
				t.Fatal("skipped candidate was bought")
			}
		}
		_, ch := h.hub.Register()
		select {
		case msg := <-ch:
			payload, ok := msg.Payload.(broadcast.SummaryPayload)
			if !ok {
				return false
			}
			for _, row := range payload.Trades {
				if row.Mint == mintUSDC && row.Status == domain.StatusFinished {
					return true
				}
			}
		default:
		}
		return false
	})
	assert.Equal(t, 1, h.orch.ActivePositions())
}

func TestOrchestrator_HeldTokenSignalDropped(t *testing.T) {
	h := newHarness(t, fixedScorer{score: 80, mentions: 5}, 5)
	h.provider.setHistory(mintWSOL, breakoutHistory())

	h.send(mintWSOL, "WSOL")
	waitFor(t, func() bool { return h.orch.ActivePositions() == 1 })

	// A second signal for the held token never reaches screening.
	h.send(mintWSOL, "WSOL")
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 1, h.orch.ActivePositions())
	buys := 0
	for _, fill := range h.ledger.TradeLog() {
		if fill.Side == domain.SideBuy {
			buys++
		}
	}
	assert.Equal(t, 1, buys)
}

func TestOrchestrator_GapTickFiresTiersInOrder(t *testing.T) {
	h := newHarness(t, fixedScorer{score: 80, mentions: 5}, 5)
	h.provider.setHistory(mintWSOL, breakoutHistory())

	h.send(mintWSOL, "WSOL")
	waitFor(t, func() bool { return h.orch.ActivePositions() == 1 })

	// One tick past both tier targets: partial tier sell, then the
	// terminal remainder sell, at the same price.
	h.provider.push(t, mintWSOL, 2.0, 10_000)
	waitFor(t, func() bool { return h.orch.ActivePositions() == 0 })

	fills := h.ledger.TradeLog()
	require.Len(t, fills, 3)
	assert.InDelta(t, 0.33, fills[1].Quantity, 1e-9)
	assert.InDelta(t, 0.67, fills[2].Quantity, 1e-9)
	assert.Equal(t, domain.ExitReasonTakeProfit, fills[1].ExitReason)
	assert.Equal(t, domain.ExitReasonTakeProfit, fills[2].ExitReason)

	_, ok := h.ledger.Position(mintWSOL)
	assert.False(t, ok)
}

func TestOrchestrator_ShutdownLeavesPositionsOpen(t *testing.T) {
	h := newHarness(t, fixedScorer{score: 80, mentions: 5}, 5)
	h.provider.setHistory(mintWSOL, breakoutHistory())

	h.send(mintWSOL, "WSOL")
	waitFor(t, func() bool { return h.orch.ActivePositions() == 1 })

	h.cancel()
	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	h.orch.Wait()

	// No forced liquidation on shutdown.
	holding, ok := h.ledger.Position(mintWSOL)
	require.True(t, ok)
	assert.InDelta(t, 1.0, holding.Quantity, 1e-9)
}

func TestOrchestrator_InvalidSignalDropped(t *testing.T) {
	h := newHarness(t, fixedScorer{score: 80, mentions: 5}, 5)

	h.source.ch <- &domain.Signal{Mint: "not-base58-!!", ReceivedAt: 1}
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 0, h.orch.ActivePositions())
	assert.Empty(t, h.ledger.TradeLog())
}
