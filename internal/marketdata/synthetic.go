package marketdata

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"solana-auto-trader/internal/domain"
)

// SyntheticConfig parameterizes the geometric-Brownian price walk used
// for demo and replay runs.
type SyntheticConfig struct {
	InitialPrice float64
	Drift        float64
	Volatility   float64
	TimeSteps    int
	TickInterval time.Duration // delay between streamed ticks
	Seed         int64         // 0 seeds from wall clock
}

// DefaultSyntheticConfig mirrors the demo parameters: a slight uptrend
// with enough volatility to exercise every exit path.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		InitialPrice: 0.01,
		Drift:        0.001,
		Volatility:   0.02,
		TimeSteps:    1000,
		TickInterval: 50 * time.Millisecond,
	}
}

// SyntheticProvider generates one deterministic candle series per mint
// and streams it tick by tick. History and Stream observe the same
// series, so an entry decision and the subsequent monitoring see a
// consistent price path.
type SyntheticProvider struct {
	cfg SyntheticConfig

	mu     sync.Mutex
	series map[string][]domain.Candle
}

// NewSyntheticProvider creates a synthetic market-data provider.
func NewSyntheticProvider(cfg SyntheticConfig) *SyntheticProvider {
	return &SyntheticProvider{
		cfg:    cfg,
		series: make(map[string][]domain.Candle),
	}
}

var _ Provider = (*SyntheticProvider)(nil)

// History returns the first limit candles of the mint's series.
func (p *SyntheticProvider) History(_ context.Context, mint string, limit int) ([]domain.Candle, error) {
	candles := p.seriesFor(mint)
	if limit > 0 && limit < len(candles) {
		candles = candles[:limit]
	}
	out := make([]domain.Candle, len(candles))
	copy(out, candles)
	return out, nil
}

// Stream yields the mint's series as ticks at the configured interval.
func (p *SyntheticProvider) Stream(ctx context.Context, mint string) (<-chan domain.Tick, error) {
	candles := p.seriesFor(mint)
	ch := make(chan domain.Tick)

	go func() {
		defer close(ch)
		for _, c := range candles {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.cfg.TickInterval):
			}

			tick := domain.Tick{
				Mint:        mint,
				Price:       c.Close,
				Volume:      c.Volume,
				TimestampMs: c.TimestampMs,
			}
			select {
			case <-ctx.Done():
				return
			case ch <- tick:
			}
		}
	}()

	return ch, nil
}

// seriesFor returns the cached series for mint, generating it on first
// use.
func (p *SyntheticProvider) seriesFor(mint string) []domain.Candle {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.series[mint]; ok {
		return s
	}

	seed := p.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// Mix the mint into the seed so tokens get distinct walks.
	for _, r := range mint {
		seed = seed*31 + int64(r)
	}

	s := generateSeries(p.cfg, seed)
	p.series[mint] = s
	return s
}

// generateSeries builds OHLCV candles over a geometric Brownian walk of
// close prices, with synthetic wicks and volume.
func generateSeries(cfg SyntheticConfig, seed int64) []domain.Candle {
	rng := rand.New(rand.NewSource(seed))

	now := time.Now().UnixMilli()
	intervalMs := int64(5 * time.Minute / time.Millisecond)
	startMs := now - int64(cfg.TimeSteps)*intervalMs

	candles := make([]domain.Candle, cfg.TimeSteps)
	logPrice := math.Log(cfg.InitialPrice)
	prevClose := cfg.InitialPrice

	for i := 0; i < cfg.TimeSteps; i++ {
		logPrice += cfg.Drift + cfg.Volatility*rng.NormFloat64()
		close := math.Exp(logPrice)

		open := prevClose
		high := math.Max(open, close) * (1 + rng.Float64()*0.015)
		low := math.Min(open, close) * (1 - rng.Float64()*0.015)

		candles[i] = domain.Candle{
			TimestampMs: startMs + int64(i)*intervalMs,
			Open:        open,
			High:        high,
			Low:         low,
			Close:       close,
			Volume:      1000 + rng.Float64()*19000,
		}
		prevClose = close
	}

	return candles
}
