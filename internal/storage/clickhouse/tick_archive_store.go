package clickhouse

import (
	"context"
	"fmt"

	"solana-auto-trader/internal/domain"
	"solana-auto-trader/internal/storage"
)

// TickArchiveStore implements storage.TickArchiveStore using ClickHouse.
// MergeTree does not enforce uniqueness; the archive tolerates the
// occasional duplicate row, analytics aggregate over it.
type TickArchiveStore struct {
	conn *Conn
}

// NewTickArchiveStore creates a new TickArchiveStore.
func NewTickArchiveStore(conn *Conn) *TickArchiveStore {
	return &TickArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TickArchiveStore = (*TickArchiveStore)(nil)

// InsertBulk archives a batch of ticks.
func (s *TickArchiveStore) InsertBulk(ctx context.Context, ticks []*domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	for _, tick := range ticks {
		if tick == nil || tick.Mint == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO tick_archive (mint, timestamp_ms, price, volume)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, tick := range ticks {
		err = batch.Append(tick.Mint, uint64(tick.TimestampMs), tick.Price, tick.Volume)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByMint retrieves all archived ticks for a token, timestamp ASC.
func (s *TickArchiveStore) GetByMint(ctx context.Context, mint string) ([]*domain.Tick, error) {
	query := `
		SELECT mint, timestamp_ms, price, volume
		FROM tick_archive
		WHERE mint = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query by mint: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// GetByTimeRange retrieves ticks for a token within [start, end] (inclusive).
func (s *TickArchiveStore) GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.Tick, error) {
	query := `
		SELECT mint, timestamp_ms, price, volume
		FROM tick_archive
		WHERE mint = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// chRows is the subset of driver.Rows the scanners need.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanTicks scans multiple rows.
func scanTicks(rows chRows) ([]*domain.Tick, error) {
	var ticks []*domain.Tick

	for rows.Next() {
		var tick domain.Tick
		var timestampMs uint64

		if err := rows.Scan(&tick.Mint, &timestampMs, &tick.Price, &tick.Volume); err != nil {
			return nil, fmt.Errorf("scan tick archive row: %w", err)
		}

		tick.TimestampMs = int64(timestampMs)
		ticks = append(ticks, &tick)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tick archive rows: %w", err)
	}

	return ticks, nil
}
