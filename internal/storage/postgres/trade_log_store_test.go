package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-auto-trader/internal/domain"
	"solana-auto-trader/internal/storage"
	"solana-auto-trader/internal/storage/postgres"
)

func testEntry(fillID, mint string, ts int64) *domain.TradeLogEntry {
	return &domain.TradeLogEntry{
		FillID:      fillID,
		Mint:        mint,
		Symbol:      "TOK",
		Side:        domain.SideBuy,
		Quantity:    2.0,
		Price:       1.0,
		SolDelta:    -2.0,
		TimestampMs: ts,
	}
}

func TestTradeLogStore_Postgres(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	s := postgres.NewTradeLogStore(pool)
	ctx := context.Background()

	t.Run("insert and get round trip", func(t *testing.T) {
		e := testEntry("fill-rt", "MintRT", 1000)
		e.Side = domain.SideSell
		e.RealizedPnL = 0.6
		e.ExitReason = domain.ExitReasonTrailingStop
		e.Fee = 0.02
		require.NoError(t, s.Insert(ctx, e))

		got, err := s.GetByFillID(ctx, "fill-rt")
		require.NoError(t, err)
		assert.Equal(t, e, got)
	})

	t.Run("duplicate fill id rejected", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, testEntry("fill-dup", "MintA", 1000)))
		err := s.Insert(ctx, testEntry("fill-dup", "MintA", 2000))
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	})

	t.Run("invalid input rejected", func(t *testing.T) {
		assert.ErrorIs(t, s.Insert(ctx, nil), storage.ErrInvalidInput)
		assert.ErrorIs(t, s.Insert(ctx, &domain.TradeLogEntry{}), storage.ErrInvalidInput)
	})

	t.Run("missing fill id not found", func(t *testing.T) {
		_, err := s.GetByFillID(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("get by mint ordered", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, testEntry("fill-m2", "MintOrd", 2000)))
		require.NoError(t, s.Insert(ctx, testEntry("fill-m1", "MintOrd", 1000)))

		got, err := s.GetByMint(ctx, "MintOrd")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "fill-m1", got[0].FillID)
		assert.Equal(t, "fill-m2", got[1].FillID)
	})

	t.Run("get all spans mints", func(t *testing.T) {
		got, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(got), 4)
	})
}
