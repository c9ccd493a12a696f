package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-auto-trader/internal/domain"
	"solana-auto-trader/internal/storage"
)

// TradeLogStore implements storage.TradeLogStore using PostgreSQL.
type TradeLogStore struct {
	pool *Pool
}

// NewTradeLogStore creates a new TradeLogStore.
func NewTradeLogStore(pool *Pool) *TradeLogStore {
	return &TradeLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeLogStore = (*TradeLogStore)(nil)

const tradeLogColumns = `
	fill_id, mint, symbol, side, quantity, price,
	sol_delta, fee, timestamp_ms, realized_pnl, exit_reason
`

// Insert adds a fill. Returns ErrDuplicateKey if fill_id exists.
func (s *TradeLogStore) Insert(ctx context.Context, entry *domain.TradeLogEntry) error {
	if entry == nil || entry.FillID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trade_log (` + tradeLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		entry.FillID, entry.Mint, entry.Symbol, string(entry.Side), entry.Quantity, entry.Price,
		entry.SolDelta, entry.Fee, entry.TimestampMs, entry.RealizedPnL, entry.ExitReason,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade log entry: %w", err)
	}
	return nil
}

// GetByFillID retrieves a fill by its ID. Returns ErrNotFound if not exists.
func (s *TradeLogStore) GetByFillID(ctx context.Context, fillID string) (*domain.TradeLogEntry, error) {
	query := `SELECT ` + tradeLogColumns + ` FROM trade_log WHERE fill_id = $1`

	row := s.pool.QueryRow(ctx, query, fillID)
	entry, err := scanTradeLogEntry(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade log entry by fill id: %w", err)
	}
	return entry, nil
}

// GetByMint retrieves all fills for a token, ordered by timestamp ASC.
func (s *TradeLogStore) GetByMint(ctx context.Context, mint string) ([]*domain.TradeLogEntry, error) {
	query := `
		SELECT ` + tradeLogColumns + `
		FROM trade_log
		WHERE mint = $1
		ORDER BY timestamp_ms ASC, fill_id ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get trade log entries by mint: %w", err)
	}
	defer rows.Close()

	return scanTradeLogEntries(rows)
}

// GetAll retrieves every fill, ordered by timestamp ASC.
func (s *TradeLogStore) GetAll(ctx context.Context) ([]*domain.TradeLogEntry, error) {
	query := `
		SELECT ` + tradeLogColumns + `
		FROM trade_log
		ORDER BY timestamp_ms ASC, fill_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all trade log entries: %w", err)
	}
	defer rows.Close()

	return scanTradeLogEntries(rows)
}

// scanTradeLogEntry scans a single row into a TradeLogEntry.
func scanTradeLogEntry(row pgx.Row) (*domain.TradeLogEntry, error) {
	var entry domain.TradeLogEntry
	var side string

	err := row.Scan(
		&entry.FillID, &entry.Mint, &entry.Symbol, &side, &entry.Quantity, &entry.Price,
		&entry.SolDelta, &entry.Fee, &entry.TimestampMs, &entry.RealizedPnL, &entry.ExitReason,
	)
	if err != nil {
		return nil, err
	}

	entry.Side = domain.TradeSide(side)
	return &entry, nil
}

// scanTradeLogEntries scans multiple rows into a slice of TradeLogEntry.
func scanTradeLogEntries(rows pgx.Rows) ([]*domain.TradeLogEntry, error) {
	var entries []*domain.TradeLogEntry

	for rows.Next() {
		entry, err := scanTradeLogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade log row: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade log rows: %w", err)
	}

	return entries, nil
}
