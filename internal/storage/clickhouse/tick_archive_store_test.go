package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-auto-trader/internal/domain"
	"solana-auto-trader/internal/storage"
)

func testTick(mint string, ts int64, price float64) *domain.Tick {
	return &domain.Tick{Mint: mint, Price: price, Volume: 500, TimestampMs: ts}
}

func TestTickArchiveStore_Clickhouse(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewTickArchiveStore(conn)
	ctx := context.Background()

	t.Run("bulk insert and read back ordered", func(t *testing.T) {
		require.NoError(t, s.InsertBulk(ctx, []*domain.Tick{
			testTick("MintA", 3000, 1.2),
			testTick("MintA", 1000, 1.0),
			testTick("MintA", 2000, 1.1),
			testTick("MintB", 1500, 9.9),
		}))

		got, err := s.GetByMint(ctx, "MintA")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, int64(1000), got[0].TimestampMs)
		assert.Equal(t, 1.0, got[0].Price)
		assert.Equal(t, int64(3000), got[2].TimestampMs)
	})

	t.Run("time range inclusive", func(t *testing.T) {
		got, err := s.GetByTimeRange(ctx, "MintA", 1000, 2000)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 1.0, got[0].Price)
		assert.Equal(t, 1.1, got[1].Price)
	})

	t.Run("empty batch is a noop", func(t *testing.T) {
		require.NoError(t, s.InsertBulk(ctx, nil))
	})

	t.Run("invalid tick rejected", func(t *testing.T) {
		err := s.InsertBulk(ctx, []*domain.Tick{{TimestampMs: 1}})
		assert.ErrorIs(t, err, storage.ErrInvalidInput)
	})

	t.Run("unknown mint empty", func(t *testing.T) {
		got, err := s.GetByMint(ctx, "Missing")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
