// Package memory provides in-memory store implementations for tests
// and demo runs without external databases.
package memory

import (
	"context"
	"sort"
	"sync"

	"solana-auto-trader/internal/domain"
	"solana-auto-trader/internal/storage"
)

// TradeLogStore is an in-memory implementation of storage.TradeLogStore.
type TradeLogStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeLogEntry // keyed by fill_id
}

// NewTradeLogStore creates a new in-memory trade log store.
func NewTradeLogStore() *TradeLogStore {
	return &TradeLogStore{
		data: make(map[string]*domain.TradeLogEntry),
	}
}

var _ storage.TradeLogStore = (*TradeLogStore)(nil)

// Insert adds a fill. Returns ErrDuplicateKey if the fill ID exists.
func (s *TradeLogStore) Insert(_ context.Context, entry *domain.TradeLogEntry) error {
	if entry == nil || entry.FillID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[entry.FillID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *entry
	s.data[entry.FillID] = &copy
	return nil
}

// GetByFillID retrieves one fill. Returns ErrNotFound if absent.
func (s *TradeLogStore) GetByFillID(_ context.Context, fillID string) (*domain.TradeLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.data[fillID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *entry
	return &copy, nil
}

// GetByMint retrieves all fills for a token, ordered by timestamp ASC.
func (s *TradeLogStore) GetByMint(_ context.Context, mint string) ([]*domain.TradeLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeLogEntry
	for _, entry := range s.data {
		if entry.Mint == mint {
			copy := *entry
			result = append(result, &copy)
		}
	}
	sortEntries(result)
	return result, nil
}

// GetAll retrieves every fill, ordered by timestamp ASC.
func (s *TradeLogStore) GetAll(_ context.Context) ([]*domain.TradeLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TradeLogEntry, 0, len(s.data))
	for _, entry := range s.data {
		copy := *entry
		result = append(result, &copy)
	}
	sortEntries(result)
	return result, nil
}

func sortEntries(entries []*domain.TradeLogEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TimestampMs != entries[j].TimestampMs {
			return entries[i].TimestampMs < entries[j].TimestampMs
		}
		return entries[i].FillID < entries[j].FillID
	})
}
