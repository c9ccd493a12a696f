package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const ohlcvBody = `{
  "data": {
    "attributes": {
      "ohlcv_list": [
        [1700000600, 1.05, 1.20, 1.00, 1.10, 5000],
        [1700000300, 1.00, 1.08, 0.95, 1.05, 4200]
      ]
    }
  }
}`

func geckoForTest(t *testing.T, handler http.Handler) *GeckoProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGeckoProvider(GeckoOptions{
		BaseURL:      srv.URL,
		RatePerSec:   1000,
		PollInterval: 10 * time.Millisecond,
		Timeout:      2 * time.Second,
	})
}

func TestGeckoHistory_ParsesAndSortsAscending(t *testing.T) {
	p := geckoForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/networks/solana/tokens/MintA/ohlcv/minute", r.URL.Path)
		require.Equal(t, "5", r.URL.Query().Get("aggregate"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(ohlcvBody))
	}))

	candles, err := p.History(context.Background(), "MintA", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	// Newest-first API payload comes back oldest-first.
	require.Equal(t, int64(1700000300000), candles[0].TimestampMs)
	require.Equal(t, 1.05, candles[0].Close)
	require.Equal(t, int64(1700000600000), candles[1].TimestampMs)
	require.Equal(t, 1.10, candles[1].Close)
}

func TestGeckoHistory_EmptyPayload(t *testing.T) {
	p := geckoForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"attributes":{"ohlcv_list":[]}}}`))
	}))

	_, err := p.History(context.Background(), "MintA", 10)
	require.ErrorIs(t, err, ErrNoData)
}

func TestGeckoHistory_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int64
	p := geckoForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(ohlcvBody))
	}))

	candles, err := p.History(context.Background(), "MintA", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	require.GreaterOrEqual(t, calls.Load(), int64(2))
}

func TestGeckoStream_EmitsOnNewCandleOnly(t *testing.T) {
	var calls atomic.Int64
	p := geckoForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(ohlcvBody))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks, err := p.Stream(ctx, "MintA")
	require.NoError(t, err)

	select {
	case tick := <-ticks:
		require.Equal(t, 1.10, tick.Price)
		require.Equal(t, int64(1700000600000), tick.TimestampMs)
	case <-time.After(5 * time.Second):
		t.Fatal("no tick emitted")
	}

	// The candle timestamp never advances, so no second tick appears
	// even though polling continues.
	select {
	case tick, ok := <-ticks:
		if ok {
			t.Fatalf("unexpected duplicate tick %+v", tick)
		}
	case <-time.After(100 * time.Millisecond):
	}
	require.GreaterOrEqual(t, calls.Load(), int64(2), "polling should continue after the first tick")
}
