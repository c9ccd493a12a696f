// Package storage defines the persistence contracts for fills and
// archived ticks, with in-memory, Postgres, and ClickHouse backends.
package storage

import (
	"context"

	"solana-auto-trader/internal/domain"
)

// TradeLogStore persists fill records. Entries are immutable; a fill
// ID is inserted at most once.
type TradeLogStore interface {
	// Insert adds a fill. Returns ErrDuplicateKey if the fill ID exists.
	Insert(ctx context.Context, entry *domain.TradeLogEntry) error

	// GetByFillID retrieves one fill. Returns ErrNotFound if absent.
	GetByFillID(ctx context.Context, fillID string) (*domain.TradeLogEntry, error)

	// GetByMint retrieves all fills for a token, ordered by timestamp ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.TradeLogEntry, error)

	// GetAll retrieves every fill, ordered by timestamp ASC.
	GetAll(ctx context.Context) ([]*domain.TradeLogEntry, error)
}

// TickArchiveStore archives observed ticks in bulk for offline
// analytics. Not on the trading path.
type TickArchiveStore interface {
	// InsertBulk archives a batch of ticks.
	InsertBulk(ctx context.Context, ticks []*domain.Tick) error

	// GetByMint retrieves archived ticks for a token, timestamp ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.Tick, error)

	// GetByTimeRange retrieves ticks within [start, end] inclusive.
	GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.Tick, error)
}
