package marketdata

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"solana-auto-trader/internal/domain"
)

// GeckoOptions configures the GeckoTerminal OHLCV client.
type GeckoOptions struct {
	BaseURL      string
	Network      string        // e.g. "solana"
	Timeframe    string        // e.g. "minute"
	Aggregate    int           // candle aggregation, e.g. 5
	RatePerSec   float64       // API budget, requests per second
	PollInterval time.Duration // Stream polling cadence
	Timeout      time.Duration
	Logger       *log.Logger
}

// GeckoProvider fetches OHLCV candles from the GeckoTerminal public API
// and derives a tick stream by polling the latest candle.
type GeckoProvider struct {
	client  *resty.Client
	limiter *rate.Limiter
	opts    GeckoOptions
	logger  *log.Logger
}

// NewGeckoProvider builds a provider with retries and a client-side
// rate limit so bursts of signals cannot exhaust the API budget.
func NewGeckoProvider(opts GeckoOptions) *GeckoProvider {
	if opts.Network == "" {
		opts.Network = "solana"
	}
	if opts.Timeframe == "" {
		opts.Timeframe = "minute"
	}
	if opts.Aggregate == 0 {
		opts.Aggregate = 5
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 0.5
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 15 * time.Second
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
		})

	return &GeckoProvider{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		opts:    opts,
		logger:  logger,
	}
}

var _ Provider = (*GeckoProvider)(nil)

// geckoOHLCVResponse mirrors the relevant slice of the GeckoTerminal
// OHLCV payload. Each entry is [ts, open, high, low, close, volume].
type geckoOHLCVResponse struct {
	Data struct {
		Attributes struct {
			OHLCVList [][]float64 `json:"ohlcv_list"`
		} `json:"attributes"`
	} `json:"data"`
}

// History fetches up to limit candles for the token's primary pool.
func (p *GeckoProvider) History(ctx context.Context, mint string, limit int) ([]domain.Candle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body geckoOHLCVResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"network":   p.opts.Network,
			"token":     mint,
			"timeframe": p.opts.Timeframe,
		}).
		SetQueryParams(map[string]string{
			"aggregate": strconv.Itoa(p.opts.Aggregate),
			"limit":     strconv.Itoa(limit),
		}).
		SetResult(&body).
		Get("/networks/{network}/tokens/{token}/ohlcv/{timeframe}")
	if err != nil {
		return nil, fmt.Errorf("fetch ohlcv for %s: %w", mint, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch ohlcv for %s: status %d", mint, resp.StatusCode())
	}

	list := body.Data.Attributes.OHLCVList
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, mint)
	}

	candles := make([]domain.Candle, 0, len(list))
	for _, row := range list {
		if len(row) < 6 {
			continue
		}
		candles = append(candles, domain.Candle{
			TimestampMs: int64(row[0]) * 1000,
			Open:        row[1],
			High:        row[2],
			Low:         row[3],
			Close:       row[4],
			Volume:      row[5],
		})
	}
	// The API returns newest first; entry rules want ASC.
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].TimestampMs < candles[j].TimestampMs
	})
	return candles, nil
}

// Stream polls the latest candle and emits its close as a tick whenever
// the observation advances. The channel closes on ctx cancellation.
func (p *GeckoProvider) Stream(ctx context.Context, mint string) (<-chan domain.Tick, error) {
	ch := make(chan domain.Tick)

	go func() {
		defer close(ch)
		ticker := time.NewTicker(p.opts.PollInterval)
		defer ticker.Stop()

		var lastTs int64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			candles, err := p.History(ctx, mint, 1)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Printf("[MARKETDATA] poll %s failed: %v", mint, err)
				continue
			}

			latest := candles[len(candles)-1]
			if latest.TimestampMs <= lastTs {
				continue
			}
			lastTs = latest.TimestampMs

			tick := domain.Tick{
				Mint:        mint,
				Price:       latest.Close,
				Volume:      latest.Volume,
				TimestampMs: latest.TimestampMs,
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
